package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"tereo-quiz-service/internal/domain"
)

// idleTicker never fires; whitebox tests drive tick() directly.
type idleTicker struct{}

func (idleTicker) C() <-chan time.Time { return nil }
func (idleTicker) Stop()               {}

func newIdleTicker(time.Duration) Ticker { return idleTicker{} }

type scheduledCall struct {
	delay time.Duration
	fn    func()
}

// captureScheduler records auto-advance requests instead of running them.
type captureScheduler struct {
	calls     []scheduledCall
	cancelled int
}

func (c *captureScheduler) schedule(d time.Duration, f func()) func() bool {
	c.calls = append(c.calls, scheduledCall{delay: d, fn: f})
	return func() bool {
		c.cancelled++
		return true
	}
}

func identity(options []string) []string {
	return append([]string(nil), options...)
}

type mapStatsStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
}

func newMapStatsStore() *mapStatsStore {
	return &mapStatsStore{data: make(map[string][]byte)}
}

func (m *mapStatsStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapStatsStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return m.getErr
	}
	raw, found := m.data[key]
	next, err := fn(raw, found)
	if err != nil {
		return err
	}
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = append([]byte(nil), next...)
	return nil
}

var errStore = errors.New("store unavailable")

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "1", Prompt: "kai", CorrectAnswer: "food", Options: []string{"food", "water", "house"}},
		{ID: "2", Prompt: "wai", CorrectAnswer: "water", Options: []string{"love", "water"}},
		{ID: "3", Prompt: "whare", CorrectAnswer: "house", Options: []string{"house", "food", "sun", "land"}},
	}
}
