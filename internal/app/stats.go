package app

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"tereo-quiz-service/internal/domain"
)

// StatsKeyPrefix namespaces persisted accuracy records.
const StatsKeyPrefix = "quizStats"

// StatsKey returns the key holding userID's accuracy record.
func StatsKey(userID string) string {
	return StatsKeyPrefix + ":" + userID
}

// UpdateFunc maps the stored record (found is false when absent) to its replacement.
// It may run more than once when a store retries a conflicting write.
type UpdateFunc func(raw []byte, found bool) ([]byte, error)

// StatsStore is a key-value store for raw JSON stats records (in-memory, Redis, etc).
// Update must apply fn atomically with respect to other updates of key.
type StatsStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

// StatsAccumulator merges resolution outcomes into one persisted {total, correct} record.
// Record is not idempotent; callers guarantee one call per resolved question.
type StatsAccumulator struct {
	store  StatsStore
	key    string
	logger *zap.Logger
}

func NewStatsAccumulator(store StatsStore, key string, logger *zap.Logger) *StatsAccumulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsAccumulator{store: store, key: key, logger: logger}
}

// Load returns the current record, or the zero record when it is absent or unreadable.
func (a *StatsAccumulator) Load(ctx context.Context) domain.Stats {
	stats, _ := a.read(ctx)
	return stats
}

// Record increments total, and correct when isCorrect, in one atomic store update.
func (a *StatsAccumulator) Record(ctx context.Context, isCorrect bool) (domain.Stats, error) {
	var stats domain.Stats
	err := a.store.Update(ctx, a.key, func(raw []byte, found bool) ([]byte, error) {
		stats = domain.Stats{}
		if found {
			stats, _ = a.decode(raw)
		}
		stats.Total++
		if isCorrect {
			stats.Correct++
		}
		return json.Marshal(stats)
	})
	if err != nil {
		return stats, fmt.Errorf("write stats: %w", err)
	}
	return stats, nil
}

// read reports ok=false when the zero record was substituted.
func (a *StatsAccumulator) read(ctx context.Context) (domain.Stats, bool) {
	raw, found, err := a.store.Get(ctx, a.key)
	if err != nil {
		a.logger.Warn("stats read failed, using empty record", zap.String("key", a.key), zap.Error(err))
		return domain.Stats{}, false
	}
	if !found {
		return domain.Stats{}, false
	}
	return a.decode(raw)
}

func (a *StatsAccumulator) decode(raw []byte) (domain.Stats, bool) {
	var stats domain.Stats
	if err := json.Unmarshal(raw, &stats); err != nil || stats.Total < 0 || stats.Correct < 0 || stats.Correct > stats.Total {
		a.logger.Warn("stats record corrupt, using empty record", zap.String("key", a.key))
		return domain.Stats{}, false
	}
	return stats, true
}
