package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"tereo-quiz-service/internal/domain"
	"tereo-quiz-service/internal/infra/memory"
)

func TestWordRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{WordLoader: memory.NewStaticWordLoader(sampleWords())}
	repo := NewWordRepository(client, loader, time.Minute, nil)

	words, err := repo.ListWords(context.Background())
	if err != nil {
		t.Fatalf("list words: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("vocab:words") {
		t.Fatalf("expected vocabulary hash in redis")
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := repo.ListWords(context.Background())
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached[0].ID != "1" || cached[0].Maori != "kia ora" || cached[0].English != "hello" {
		t.Fatalf("unexpected cached word %+v", cached[0])
	}

	if err := repo.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	_, _ = repo.ListWords(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestWordRepositoryExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{WordLoader: memory.NewStaticWordLoader(sampleWords())}
	repo := NewWordRepository(newClient(mr), loader, time.Minute, nil)

	_, _ = repo.ListWords(context.Background())
	mr.FastForward(2 * time.Minute)
	_, _ = repo.ListWords(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.WordLoader
	calls int
}

func (l *countingLoader) LoadWords(ctx context.Context) ([]domain.Word, error) {
	l.calls++
	return l.WordLoader.LoadWords(ctx)
}

func sampleWords() []domain.Word {
	return []domain.Word{
		{ID: "1", Maori: "kia ora", English: "hello"},
		{ID: "2", Maori: "aroha", English: "love"},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
