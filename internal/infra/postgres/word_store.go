package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"tereo-quiz-service/internal/domain"
)

// WordStore reads and seeds the vocabulary table.
type WordStore struct {
	pool *pgxpool.Pool
}

func NewWordStore(pool *pgxpool.Pool) *WordStore {
	return &WordStore{pool: pool}
}

func (s *WordStore) LoadWords(ctx context.Context) ([]domain.Word, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, maori, english FROM words ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}
	defer rows.Close()

	var words []domain.Word
	for rows.Next() {
		var w domain.Word
		if err := rows.Scan(&w.ID, &w.Maori, &w.English); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}
	if len(words) == 0 {
		return nil, domain.ErrNoWords
	}
	return words, nil
}

// SeedIfEmpty inserts words when the table has none; it reports how many were inserted.
func (s *WordStore) SeedIfEmpty(ctx context.Context, words []domain.Word) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM words`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count words: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, w := range words {
		batch.Queue(`INSERT INTO words (id, maori, english) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`, w.ID, w.Maori, w.English)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range words {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("seed words: %w", err)
		}
	}
	return len(words), nil
}
