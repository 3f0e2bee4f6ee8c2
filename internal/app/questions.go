package app

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"tereo-quiz-service/internal/domain"
)

// WordRepository lists the vocabulary (from cache/backing store).
type WordRepository interface {
	ListWords(ctx context.Context) ([]domain.Word, error)
}

// MistakeRepository returns a user's mistake log.
type MistakeRepository interface {
	ListMistakes(ctx context.Context, userID string) ([]domain.MistakeEntry, error)
}

// QuestionSupply returns up to limit questions for a user, fixed for one session.
type QuestionSupply interface {
	Questions(ctx context.Context, userID string, limit int) ([]domain.Question, error)
}

const distractorCount = 3

// QuestionBuilder turns the vocabulary into multiple-choice questions,
// putting the user's previous mistakes first.
type QuestionBuilder struct {
	words        WordRepository
	mistakes     MistakeRepository
	defaultLimit int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewQuestionBuilder creates a builder; mistakes may be nil to disable review ordering.
func NewQuestionBuilder(words WordRepository, mistakes MistakeRepository, defaultLimit int) *QuestionBuilder {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &QuestionBuilder{
		words:        words,
		mistakes:     mistakes,
		defaultLimit: defaultLimit,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBuilder) Questions(ctx context.Context, userID string, limit int) ([]domain.Question, error) {
	words, err := b.words.ListWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list words: %w", err)
	}
	answers := distinctEnglish(words)
	if len(answers) < 2 {
		return nil, domain.ErrNoWords
	}

	if limit <= 0 {
		limit = b.defaultLimit
	}
	if limit > len(words) {
		limit = len(words)
	}

	var mistakes []domain.MistakeEntry
	if b.mistakes != nil {
		mistakes, err = b.mistakes.ListMistakes(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list mistakes: %w", err)
		}
	}
	sortMistakes(mistakes)

	byID := make(map[string]domain.Word, len(words))
	for _, w := range words {
		byID[w.ID] = w
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ids, review := b.candidates(words, byID, mistakes, limit)
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		questions = append(questions, b.makeQuestion(byID[id], answers, review[id]))
	}
	return questions, nil
}

// candidates picks review words first, then fills with a random sample of the rest.
func (b *QuestionBuilder) candidates(words []domain.Word, byID map[string]domain.Word, mistakes []domain.MistakeEntry, limit int) ([]string, map[string]bool) {
	ids := make([]string, 0, limit)
	review := make(map[string]bool)
	for _, m := range mistakes {
		if len(ids) == limit {
			break
		}
		if _, ok := byID[m.WordID]; !ok || review[m.WordID] {
			continue
		}
		ids = append(ids, m.WordID)
		review[m.WordID] = true
	}

	rest := make([]string, 0, len(words))
	for _, w := range words {
		if !review[w.ID] {
			rest = append(rest, w.ID)
		}
	}
	b.rnd.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	for _, id := range rest {
		if len(ids) == limit {
			break
		}
		ids = append(ids, id)
	}
	return ids, review
}

func (b *QuestionBuilder) makeQuestion(w domain.Word, answers []string, isReview bool) domain.Question {
	pool := make([]string, 0, len(answers))
	for _, a := range answers {
		if a != w.English {
			pool = append(pool, a)
		}
	}
	b.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > distractorCount {
		pool = pool[:distractorCount]
	}

	options := append([]string{w.English}, pool...)
	b.rnd.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return domain.Question{
		ID:            w.ID,
		Prompt:        w.Maori,
		CorrectAnswer: w.English,
		Options:       options,
		IsReview:      isReview,
	}
}

// sortMistakes orders by count desc, then most recent mistake first.
func sortMistakes(mistakes []domain.MistakeEntry) {
	sort.SliceStable(mistakes, func(i, j int) bool {
		if mistakes[i].Count != mistakes[j].Count {
			return mistakes[i].Count > mistakes[j].Count
		}
		return mistakes[i].LastWrong.After(mistakes[j].LastWrong)
	})
}

func distinctEnglish(words []domain.Word) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w.English == "" {
			continue
		}
		if _, ok := seen[w.English]; ok {
			continue
		}
		seen[w.English] = struct{}{}
		out = append(out, w.English)
	}
	return out
}
