package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tereo-quiz-service/internal/app"
	"tereo-quiz-service/internal/domain"
)

// HistoryEntry is one recorded quiz result.
type HistoryEntry struct {
	UserID       string
	WrongWordIDs []string
	RecordedAt   time.Time
}

// MistakeStore keeps per-user mistake counters and quiz history in memory.
// It implements both app.MistakeRepository and app.MistakeReporter.
type MistakeStore struct {
	words app.WordRepository
	clock func() time.Time

	mu       sync.RWMutex
	mistakes map[string]map[string]*domain.MistakeEntry
	history  []HistoryEntry
}

// NewMistakeStore creates a store that only accepts IDs known to words.
func NewMistakeStore(words app.WordRepository) *MistakeStore {
	return &MistakeStore{
		words:    words,
		clock:    time.Now,
		mistakes: make(map[string]map[string]*domain.MistakeEntry),
	}
}

func (s *MistakeStore) ListMistakes(_ context.Context, userID string) ([]domain.MistakeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.mistakes[userID]
	out := make([]domain.MistakeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	return out, nil
}

// ReportMistakes bumps the counter of every known word in the report and records history.
func (s *MistakeStore) ReportMistakes(ctx context.Context, report domain.MistakeReport) error {
	words, err := s.words.ListWords(ctx)
	if err != nil {
		return fmt.Errorf("list words: %w", err)
	}
	known := make(map[string]struct{}, len(words))
	for _, w := range words {
		known[w.ID] = struct{}{}
	}

	userID := report.UserID
	if userID == "" {
		userID = app.AnonymousUser
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	valid := make([]string, 0, len(report.MissedIDs))
	for _, id := range report.MissedIDs {
		if _, ok := known[id]; !ok {
			continue
		}
		valid = append(valid, id)

		entries, ok := s.mistakes[userID]
		if !ok {
			entries = make(map[string]*domain.MistakeEntry)
			s.mistakes[userID] = entries
		}
		entry, ok := entries[id]
		if !ok {
			entry = &domain.MistakeEntry{WordID: id}
			entries[id] = entry
		}
		entry.Count++
		entry.LastWrong = now
	}

	if len(valid) > 0 {
		s.history = append(s.history, HistoryEntry{UserID: userID, WrongWordIDs: valid, RecordedAt: now})
	}
	return nil
}

// History returns recorded quiz results, oldest first.
func (s *MistakeStore) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}
