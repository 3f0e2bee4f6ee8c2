package migrations

import (
	"context"
	"embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed *.sql
var sqlFiles embed.FS

// Migrations holds every schema change, applied in file-name order.
var Migrations = migrate.NewMigrations()

// execFile returns a migration step running the embedded SQL file name.
func execFile(name string) migrate.MigrationFunc {
	return func(ctx context.Context, db *bun.DB) error {
		query, err := sqlFiles.ReadFile(name)
		if err != nil {
			return err
		}
		_, err = db.ExecContext(ctx, string(query))
		return err
	}
}
