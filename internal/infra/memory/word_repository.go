package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tereo-quiz-service/internal/domain"
)

// WordLoader fetches the vocabulary from a backing store (e.g., Postgres).
type WordLoader interface {
	LoadWords(ctx context.Context) ([]domain.Word, error)
}

const wordsKey = "words"

// WordRepository caches the vocabulary with TTL to avoid repeated DB hits.
type WordRepository struct {
	loader WordLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	words     []domain.Word
	expiresAt time.Time
}

func NewWordRepository(loader WordLoader, ttl time.Duration) *WordRepository {
	return &WordRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *WordRepository) ListWords(ctx context.Context) ([]domain.Word, error) {
	if words, ok := r.cached(r.clock()); ok {
		return words, nil
	}

	result, err, _ := r.sf.Do(wordsKey, func() (interface{}, error) {
		now := r.clock()
		if words, ok := r.cached(now); ok {
			return words, nil
		}

		words, err := r.loader.LoadWords(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.words = words
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return words, nil
	})
	if err != nil {
		return nil, err
	}
	return copyWords(result.([]domain.Word)), nil
}

// Invalidate drops the cached vocabulary.
func (r *WordRepository) Invalidate() {
	r.mu.Lock()
	r.words = nil
	r.expiresAt = time.Time{}
	r.mu.Unlock()
}

func (r *WordRepository) cached(now time.Time) ([]domain.Word, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.words != nil && r.expiresAt.After(now) {
		return copyWords(r.words), true
	}
	return nil, false
}

func (r *WordRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func copyWords(words []domain.Word) []domain.Word {
	out := make([]domain.Word, len(words))
	copy(out, words)
	return out
}

// StaticWordLoader is a simple loader backed by an in-memory slice (useful for tests/demos).
type StaticWordLoader struct {
	words []domain.Word
}

func NewStaticWordLoader(words []domain.Word) *StaticWordLoader {
	return &StaticWordLoader{words: words}
}

func (l *StaticWordLoader) LoadWords(_ context.Context) ([]domain.Word, error) {
	if len(l.words) == 0 {
		return nil, domain.ErrNoWords
	}
	return copyWords(l.words), nil
}
