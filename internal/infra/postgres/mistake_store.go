package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"tereo-quiz-service/internal/domain"
)

// MistakeStore persists per-user mistake counters and quiz history.
// It implements both app.MistakeRepository and app.MistakeReporter.
type MistakeStore struct {
	pool  *pgxpool.Pool
	clock func() time.Time
}

func NewMistakeStore(pool *pgxpool.Pool) *MistakeStore {
	return &MistakeStore{pool: pool, clock: time.Now}
}

func (s *MistakeStore) ListMistakes(ctx context.Context, userID string) ([]domain.MistakeEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT word_id, count, last_wrong
		FROM user_mistakes
		WHERE user_id = $1
		ORDER BY count DESC, last_wrong DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list mistakes: %w", err)
	}
	defer rows.Close()

	var entries []domain.MistakeEntry
	for rows.Next() {
		var e domain.MistakeEntry
		if err := rows.Scan(&e.WordID, &e.Count, &e.LastWrong); err != nil {
			return nil, fmt.Errorf("scan mistake: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReportMistakes bumps the counter of every existing word in the report and
// appends a history row, all in one transaction.
func (s *MistakeStore) ReportMistakes(ctx context.Context, report domain.MistakeReport) error {
	userID := report.UserID
	if userID == "" {
		userID = "anonymous"
	}
	now := s.clock().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	known := make(map[string]struct{}, len(report.MissedIDs))
	rows, err := tx.Query(ctx, `SELECT id FROM words WHERE id = ANY($1)`, report.MissedIDs)
	if err != nil {
		return fmt.Errorf("filter word ids: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scan word id: %w", err)
		}
		known[id] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("filter word ids: %w", err)
	}

	valid := make([]string, 0, len(report.MissedIDs))
	for _, id := range report.MissedIDs {
		if _, ok := known[id]; !ok {
			continue
		}
		valid = append(valid, id)
		if _, err := tx.Exec(ctx, `
			INSERT INTO user_mistakes (user_id, word_id, count, last_wrong)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (user_id, word_id)
			DO UPDATE SET count = user_mistakes.count + 1, last_wrong = EXCLUDED.last_wrong`,
			userID, id, now); err != nil {
			return fmt.Errorf("upsert mistake: %w", err)
		}
	}

	if len(valid) > 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO quiz_history (user_id, wrong_word_ids, recorded_at)
			VALUES ($1, $2, $3)`, userID, valid, now); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}

	return tx.Commit(ctx)
}
