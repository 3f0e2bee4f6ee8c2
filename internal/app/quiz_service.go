package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tereo-quiz-service/internal/domain"
)

// AnonymousUser is used when a caller does not identify the player.
const AnonymousUser = "anonymous"

// SessionRepository abstracts where running sessions are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// ServiceConfig carries the per-session timing plus service-level limits.
type ServiceConfig struct {
	Session       SessionConfig
	QuestionLimit int
	ReportTimeout time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Session:       DefaultSessionConfig(),
		QuestionLimit: 10,
		ReportTimeout: 5 * time.Second,
	}
}

type ServiceOption func(*QuizService)

// WithReporter sets where missed items go when a session finishes.
// Without one, sessions complete with nothing reported.
func WithReporter(reporter MistakeReporter) ServiceOption {
	return func(s *QuizService) { s.reporter = reporter }
}

func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *QuizService) { s.logger = logger }
}

// WithSessionOptions applies opts to every session the service creates.
func WithSessionOptions(opts ...SessionOption) ServiceOption {
	return func(s *QuizService) { s.sessionOpts = append(s.sessionOpts, opts...) }
}

// WithIDGenerator replaces uuid session IDs (deterministic tests).
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *QuizService) { s.newID = newID }
}

// QuizService contains the quiz session use cases.
type QuizService struct {
	sessions    SessionRepository
	supply      QuestionSupply
	stats       StatsStore
	reporter    MistakeReporter
	cfg         ServiceConfig
	logger      *zap.Logger
	newID       func() string
	sessionOpts []SessionOption

	mu          sync.Mutex
	live        map[string]*Session
	completions map[string]*Completion
	closed      bool
	reports     sync.WaitGroup
}

func NewQuizService(store SessionRepository, supply QuestionSupply, stats StatsStore, cfg ServiceConfig, opts ...ServiceOption) *QuizService {
	def := DefaultServiceConfig()
	if cfg.QuestionLimit <= 0 {
		cfg.QuestionLimit = def.QuestionLimit
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = def.ReportTimeout
	}
	s := &QuizService{
		sessions:    store,
		supply:      supply,
		stats:       stats,
		cfg:         cfg,
		logger:      zap.NewNop(),
		newID:       uuid.NewString,
		live:        make(map[string]*Session),
		completions: make(map[string]*Completion),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession loads questions for userID and starts a session on the first one.
// Nothing is created when loading fails or yields no questions.
func (s *QuizService) StartSession(ctx context.Context, userID string, limit int) (*Session, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, domain.ErrSessionClosed
	}
	if userID == "" {
		userID = AnonymousUser
	}
	if limit <= 0 {
		limit = s.cfg.QuestionLimit
	}

	questions, err := s.supply.Questions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	id := s.newID()
	logger := s.logger.With(zap.String("session_id", id))
	opts := make([]SessionOption, 0, len(s.sessionOpts)+2)
	opts = append(opts, WithLogger(logger))
	opts = append(opts, s.sessionOpts...)
	opts = append(opts, WithCompletion(s.complete))

	stats := NewStatsAccumulator(s.stats, StatsKey(userID), logger)
	session, err := NewSession(id, userID, questions, stats, s.cfg.Session, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrSessionClosed
	}
	s.live[id] = session
	s.mu.Unlock()

	s.sessions.Put(session)
	session.Start()
	logger.Info("session started", zap.String("user_id", userID), zap.Int("questions", len(questions)))
	return session, nil
}

// Select submits a choice for the current question of a session.
func (s *QuizService) Select(ctx context.Context, sessionID, choice string) (domain.Snapshot, bool, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Snapshot{}, false, domain.ErrSessionNotFound
	}
	return session.Select(ctx, choice)
}

// Advance moves a session past its resolved question.
func (s *QuizService) Advance(ctx context.Context, sessionID string) (domain.Snapshot, bool, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Snapshot{}, false, domain.ErrSessionNotFound
	}
	return session.Advance(ctx)
}

func (s *QuizService) Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return session.Snapshot(ctx)
}

// Subscribe returns a channel that receives session snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Snapshot, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	return session.Subscribe(ctx)
}

// Completion returns the finished result of a session.
func (s *QuizService) Completion(sessionID string) (*Completion, error) {
	s.mu.Lock()
	c, ok := s.completions[sessionID]
	s.mu.Unlock()
	if ok {
		return c, nil
	}
	if _, running := s.sessions.Get(sessionID); running {
		return nil, domain.ErrSessionNotFinished
	}
	return nil, domain.ErrSessionNotFound
}

// AwaitReport waits, at most the configured report timeout, for the mistake
// report of a finished session to settle.
func (s *QuizService) AwaitReport(ctx context.Context, sessionID string) (domain.Result, error) {
	c, err := s.Completion(sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReportTimeout)
	defer cancel()
	return c.Result, c.Wait(ctx)
}

// End closes a session and forgets it.
func (s *QuizService) End(sessionID string) {
	if session, ok := s.sessions.Get(sessionID); ok {
		session.Close()
		s.sessions.Delete(sessionID)
	}
	s.mu.Lock()
	delete(s.live, sessionID)
	delete(s.completions, sessionID)
	s.mu.Unlock()
}

// Shutdown refuses new sessions, closes the running ones and waits for
// in-flight mistake reports, so backing stores can be closed afterwards.
func (s *QuizService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	live := make([]*Session, 0, len(s.live))
	for _, session := range s.live {
		live = append(live, session)
	}
	s.mu.Unlock()

	for _, session := range live {
		session.Close()
		s.End(session.ID())
	}
	s.logger.Info("sessions closed", zap.Int("sessions", len(live)))

	settled := make(chan struct{})
	go func() {
		s.reports.Wait()
		close(settled)
	}()
	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the persisted accuracy record of userID.
func (s *QuizService) Stats(ctx context.Context, userID string) domain.Stats {
	if userID == "" {
		userID = AnonymousUser
	}
	return NewStatsAccumulator(s.stats, StatsKey(userID), s.logger).Load(ctx)
}

// complete runs on the session loop; the report itself runs in the background.
func (s *QuizService) complete(result domain.Result) {
	c := startReport(s.reporter, result, s.cfg.ReportTimeout, s.logger)
	s.reports.Add(1)
	go func() {
		defer s.reports.Done()
		<-c.Done()
	}()
	s.mu.Lock()
	s.completions[result.SessionID] = c
	s.mu.Unlock()
}
