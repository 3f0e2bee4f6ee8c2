package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(
		execFile("0002_create_mistakes.sql"),
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS quiz_history; DROP TABLE IF EXISTS user_mistakes`)
			return err
		},
	)
}
