package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"tereo-quiz-service/internal/domain"
)

// SessionConfig holds the timing contract of a session.
type SessionConfig struct {
	QuestionSeconds int           // countdown budget per question
	TickInterval    time.Duration // one countdown step
	FeedbackDelay   time.Duration // display time before a timed-out question advances
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		QuestionSeconds: 20,
		TickInterval:    time.Second,
		FeedbackDelay:   time.Second,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.QuestionSeconds <= 0 {
		c.QuestionSeconds = def.QuestionSeconds
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.FeedbackDelay < 0 {
		c.FeedbackDelay = def.FeedbackDelay
	}
	return c
}

// Scheduler runs f once after d; the returned func cancels it if it has not fired.
type Scheduler func(d time.Duration, f func()) (cancel func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

func shuffleOptions(options []string) []string {
	out := make([]string, len(options))
	copy(out, options)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// SessionOption customises a Session at construction.
type SessionOption func(*Session)

// WithTickerFactory replaces the countdown ticker (deterministic tests).
func WithTickerFactory(newTicker func(time.Duration) Ticker) SessionOption {
	return func(s *Session) { s.newTicker = newTicker }
}

// WithScheduler replaces the auto-advance scheduler.
func WithScheduler(schedule Scheduler) SessionOption {
	return func(s *Session) { s.schedule = schedule }
}

// WithShuffle replaces the option shuffle; it must return a new slice.
func WithShuffle(shuffle func([]string) []string) SessionOption {
	return func(s *Session) { s.shuffle = shuffle }
}

func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithCompletion registers the callback invoked exactly once when the session finishes.
// It runs on the session loop and must not call back into the session.
func WithCompletion(onFinish func(domain.Result)) SessionOption {
	return func(s *Session) { s.onFinish = onFinish }
}

// Session drives one quiz run from the first question to completion.
// All state below the loop marker is owned by the session loop goroutine;
// public methods post closures onto ops and wait for them to run.
type Session struct {
	id        string
	userID    string
	questions []domain.Question
	cfg       SessionConfig
	stats     *StatsAccumulator
	logger    *zap.Logger
	newTicker func(time.Duration) Ticker
	schedule  Scheduler
	shuffle   func([]string) []string
	onFinish  func(domain.Result)

	ctx    context.Context
	cancel context.CancelFunc

	ops       chan op
	quit      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	// loop-owned
	timer       *Timer
	index       int
	options     []string
	remaining   int
	selected    string
	feedback    *domain.Feedback
	score       int
	missed      []string
	phase       domain.Phase
	cancelAuto  func() bool
	subscribers map[chan domain.Snapshot]struct{}
}

// NewSession validates questions and prepares a session; Start begins the first question.
func NewSession(id, userID string, questions []domain.Question, stats *StatsAccumulator, cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuestionSet
	}
	for _, q := range questions {
		n := distinctOptions(q.Options)
		if n < 2 || n != len(q.Options) || !q.HasOption(q.CorrectAnswer) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuestion, q.ID)
		}
	}

	owned := make([]domain.Question, len(questions))
	copy(owned, questions)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:          id,
		userID:      userID,
		questions:   owned,
		cfg:         cfg.withDefaults(),
		stats:       stats,
		logger:      zap.NewNop(),
		newTicker:   newRealTicker,
		schedule:    afterFunc,
		shuffle:     shuffleOptions,
		ctx:         ctx,
		cancel:      cancel,
		ops:         make(chan op),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		missed:      []string{},
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.timer = NewTimer(s.cfg.TickInterval, s.newTicker)
	return s, nil
}

func (s *Session) ID() string     { return s.id }
func (s *Session) UserID() string { return s.userID }

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start enters the first question and runs the session loop. Later calls are no-ops.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

// Close stops the timer and the loop and closes all subscriptions.
// It must not be called from the completion callback.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		// A session that never started has no loop to close done.
		s.startOnce.Do(func() {
			s.cancel()
			close(s.done)
		})
	})
	<-s.done
}

// Select resolves the current question with choice. applied is false when the
// question was already resolved; a choice that was not presented returns ErrOptionNotFound.
func (s *Session) Select(ctx context.Context, choice string) (snap domain.Snapshot, applied bool, err error) {
	var opErr error
	if err := s.do(ctx, func() {
		applied, opErr = s.choose(choice)
		snap = s.snapshot()
	}); err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, applied, opErr
}

// Advance moves past a resolved question. applied is false outside the feedback phase.
func (s *Session) Advance(ctx context.Context) (snap domain.Snapshot, applied bool, err error) {
	if err := s.do(ctx, func() {
		applied = s.advance(s.index)
		snap = s.snapshot()
	}); err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, applied, nil
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := s.do(ctx, func() { snap = s.snapshot() }); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// Subscribe returns a channel receiving a snapshot after every state change,
// starting with the current one. Slow readers only miss stale snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe(ctx context.Context) (<-chan domain.Snapshot, func(), error) {
	ch := make(chan domain.Snapshot, 8)
	if err := s.do(ctx, func() {
		s.subscribers[ch] = struct{}{}
		ch <- s.snapshot()
	}); err != nil {
		return nil, nil, err
	}

	cancel := func() {
		_ = s.do(context.Background(), func() {
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, cancel, nil
}

func (s *Session) do(ctx context.Context, fn op) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case s.ops <- wrapped:
	case <-s.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

func (s *Session) run() {
	defer close(s.done)
	defer s.teardown()

	s.enter(0)
	for {
		select {
		case fn := <-s.ops:
			fn()
		case <-s.quit:
			return
		}
	}
}

func (s *Session) teardown() {
	s.timer.Stop()
	s.cancelAutoAdvance()
	s.cancel()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// enter makes index the current question with fresh options and a full budget.
func (s *Session) enter(index int) {
	q := s.questions[index]
	s.index = index
	s.options = s.shuffle(q.Options)
	s.remaining = s.cfg.QuestionSeconds
	s.selected = ""
	s.feedback = nil
	s.phase = domain.PhaseActive
	s.timer.Start(s.ops, s.tick)
	s.broadcast()
}

func (s *Session) tick() {
	if s.phase != domain.PhaseActive || s.remaining <= 0 {
		return
	}
	s.remaining--
	if s.remaining > 0 {
		s.broadcast()
		return
	}

	s.resolve(domain.OutcomeTimeout)
	index := s.index
	s.cancelAuto = s.schedule(s.cfg.FeedbackDelay, func() {
		select {
		case s.ops <- func() { s.advance(index) }:
		case <-s.done:
		}
	})
}

func (s *Session) choose(choice string) (bool, error) {
	if s.phase != domain.PhaseActive {
		return false, nil
	}
	if !containsOption(s.options, choice) {
		return false, domain.ErrOptionNotFound
	}

	s.selected = choice
	if choice == s.questions[s.index].CorrectAnswer {
		s.resolve(domain.OutcomeCorrect)
	} else {
		s.resolve(domain.OutcomeIncorrect)
	}
	return true, nil
}

// resolve is the single Active -> Feedback transition; callers check the phase first.
func (s *Session) resolve(outcome domain.Outcome) {
	s.timer.Stop()
	s.phase = domain.PhaseFeedback

	q := s.questions[s.index]
	fb := domain.Feedback{Outcome: outcome, Answer: q.CorrectAnswer}
	switch outcome {
	case domain.OutcomeCorrect:
		s.score++
		fb.Message = "Correct!"
	case domain.OutcomeTimeout:
		s.missed = append(s.missed, q.ID)
		fb.Message = "Time's up! Answer: " + q.CorrectAnswer
	default:
		s.missed = append(s.missed, q.ID)
		fb.Message = "Wrong! Answer: " + q.CorrectAnswer
	}
	s.feedback = &fb

	if s.stats != nil {
		if _, err := s.stats.Record(s.ctx, outcome == domain.OutcomeCorrect); err != nil {
			s.logger.Warn("failed to record stats", zap.String("question_id", q.ID), zap.Error(err))
		}
	}
	s.logger.Debug("question resolved",
		zap.Int("index", s.index),
		zap.String("question_id", q.ID),
		zap.String("outcome", string(outcome)),
	)
	s.broadcast()
}

// advance leaves the feedback phase of question index; stale or repeated calls are no-ops.
func (s *Session) advance(index int) bool {
	if s.phase != domain.PhaseFeedback || index != s.index {
		return false
	}
	s.cancelAutoAdvance()

	if s.index+1 < len(s.questions) {
		s.enter(s.index + 1)
		return true
	}
	s.finish()
	return true
}

func (s *Session) finish() {
	s.timer.Stop()
	s.phase = domain.PhaseFinished

	result := domain.Result{
		SessionID: s.id,
		UserID:    s.userID,
		Score:     s.score,
		Total:     len(s.questions),
		MissedIDs: append([]string{}, s.missed...),
	}
	s.logger.Info("session finished",
		zap.String("user_id", s.userID),
		zap.Int("score", result.Score),
		zap.Int("total", result.Total),
	)
	if s.onFinish != nil {
		s.onFinish(result)
	}
	s.broadcast()
}

func (s *Session) cancelAutoAdvance() {
	if s.cancelAuto != nil {
		s.cancelAuto()
		s.cancelAuto = nil
	}
}

func (s *Session) snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID:        s.id,
		Phase:            s.phase,
		Index:            s.index,
		Total:            len(s.questions),
		SecondsRemaining: s.remaining,
		Score:            s.score,
		MissedIDs:        append([]string{}, s.missed...),
	}
	if s.phase == domain.PhaseFinished {
		return snap
	}

	q := s.questions[s.index]
	snap.QuestionID = q.ID
	snap.Prompt = q.Prompt
	snap.IsReview = q.IsReview
	snap.Options = append([]string(nil), s.options...)
	snap.Selected = s.selected
	if s.feedback != nil {
		fb := *s.feedback
		snap.Feedback = &fb
	}
	return snap
}

func (s *Session) broadcast() {
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshot()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// drop the oldest pending snapshot; the newest one supersedes it
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func distinctOptions(options []string) int {
	seen := make(map[string]struct{}, len(options))
	for _, o := range options {
		seen[o] = struct{}{}
	}
	return len(seen)
}

func containsOption(options []string, choice string) bool {
	for _, o := range options {
		if o == choice {
			return true
		}
	}
	return false
}
