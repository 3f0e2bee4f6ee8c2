package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tereo-quiz-service/internal/domain"
)

// WordLoader fetches the vocabulary from a backing store (e.g., Postgres).
type WordLoader interface {
	LoadWords(ctx context.Context) ([]domain.Word, error)
}

// WordRepository caches the vocabulary in Redis (one hash) and falls back to a loader on cache miss.
// Words are stored as: HSET vocab:words {wordID} {"maori":..,"english":..}
type WordRepository struct {
	client *redis.Client
	loader WordLoader
	ttl    time.Duration
	logger *zap.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewWordRepository(client *redis.Client, loader WordLoader, ttl time.Duration, logger *zap.Logger) *WordRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WordRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type cachedWord struct {
	Maori   string `json:"maori"`
	English string `json:"english"`
}

func (r *WordRepository) ListWords(ctx context.Context) ([]domain.Word, error) {
	if words, ok := r.cached(ctx); ok {
		return words, nil
	}

	result, err, _ := r.sf.Do(r.key(), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if words, ok := r.cached(ctx); ok {
			return words, nil
		}

		words, err := r.loader.LoadWords(ctx)
		if err != nil {
			return nil, err
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, r.key())
		for _, w := range words {
			raw, err := json.Marshal(cachedWord{Maori: w.Maori, English: w.English})
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, r.key(), w.ID, raw)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, r.key(), ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			r.logger.Warn("failed to cache vocabulary", zap.Error(err))
		}
		return words, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Word), nil
}

// Invalidate drops the cached vocabulary.
func (r *WordRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, r.key()).Err()
}

func (r *WordRepository) cached(ctx context.Context) ([]domain.Word, bool) {
	entries, err := r.client.HGetAll(ctx, r.key()).Result()
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	words, err := buildWordsFromCache(entries)
	if err != nil {
		r.logger.Warn("vocabulary cache corrupt", zap.Error(err))
		return nil, false
	}
	return words, true
}

func (r *WordRepository) key() string {
	return "vocab:words"
}

func buildWordsFromCache(entries map[string]string) ([]domain.Word, error) {
	words := make([]domain.Word, 0, len(entries))
	for id, raw := range entries {
		var w cachedWord
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return nil, err
		}
		words = append(words, domain.Word{ID: id, Maori: w.Maori, English: w.English})
	}
	sort.Slice(words, func(i, j int) bool { return words[i].ID < words[j].ID })
	return words, nil
}

func (r *WordRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
