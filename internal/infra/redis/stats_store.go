package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tereo-quiz-service/internal/app"
)

// maxUpdateAttempts bounds optimistic retries when concurrent writers collide on a key.
const maxUpdateAttempts = 100

// StatsStore persists stats records as plain Redis strings without expiry.
type StatsStore struct {
	client *redis.Client
}

func NewStatsStore(client *redis.Client) *StatsStore {
	return &StatsStore{client: client}
}

func (s *StatsStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return raw, true, nil
}

// Update applies fn inside WATCH/MULTI; a write that lost the race is retried
// against the fresh value.
func (s *StatsStore) Update(ctx context.Context, key string, fn app.UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		found := true
		if errors.Is(err, redis.Nil) {
			raw, found, err = nil, false, nil
		}
		if err != nil {
			return err
		}

		next, err := fn(raw, found)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("update %s: %w", key, redis.TxFailedErr)
}
