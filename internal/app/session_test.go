package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"tereo-quiz-service/internal/domain"
)

type sessionFixture struct {
	session  *Session
	sched    *captureScheduler
	stats    *mapStatsStore
	finished []domain.Result
}

func newSessionFixture(t *testing.T, questions []domain.Question, cfg SessionConfig) *sessionFixture {
	t.Helper()
	f := &sessionFixture{sched: &captureScheduler{}, stats: newMapStatsStore()}
	acc := NewStatsAccumulator(f.stats, StatsKey("u1"), nil)
	s, err := NewSession("s1", "u1", questions, acc, cfg,
		WithTickerFactory(newIdleTicker),
		WithScheduler(f.sched.schedule),
		WithShuffle(identity),
		WithCompletion(func(r domain.Result) { f.finished = append(f.finished, r) }),
	)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.teardown)
	f.session = s
	return f
}

func (f *sessionFixture) storedStats(t *testing.T) domain.Stats {
	t.Helper()
	return NewStatsAccumulator(f.stats, StatsKey("u1"), nil).Load(context.Background())
}

func TestNewSessionValidatesQuestions(t *testing.T) {
	if _, err := NewSession("s", "u", nil, nil, SessionConfig{}); !errors.Is(err, domain.ErrEmptyQuestionSet) {
		t.Fatalf("expected empty question set error, got %v", err)
	}

	missingAnswer := []domain.Question{{ID: "q", CorrectAnswer: "food", Options: []string{"water", "house"}}}
	if _, err := NewSession("s", "u", missingAnswer, nil, SessionConfig{}); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question error, got %v", err)
	}

	oneOption := []domain.Question{{ID: "q", CorrectAnswer: "food", Options: []string{"food"}}}
	if _, err := NewSession("s", "u", oneOption, nil, SessionConfig{}); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected invalid question error, got %v", err)
	}

	repeated := []domain.Question{{ID: "q", CorrectAnswer: "food", Options: []string{"food", "food"}}}
	if _, err := NewSession("s", "u", repeated, nil, SessionConfig{}); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected repeated options to be rejected, got %v", err)
	}

	duplicate := []domain.Question{{ID: "q", CorrectAnswer: "food", Options: []string{"food", "water", "food"}}}
	if _, err := NewSession("s", "u", duplicate, nil, SessionConfig{}); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected duplicate option to be rejected, got %v", err)
	}
}

func TestEnterResetsCountdown(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 5})
	s := f.session

	s.enter(0)
	if s.phase != domain.PhaseActive || s.remaining != 5 || !s.timer.Running() {
		t.Fatalf("unexpected state after enter: phase=%s remaining=%d running=%v", s.phase, s.remaining, s.timer.Running())
	}
	s.tick()
	s.tick()
	if s.remaining != 3 {
		t.Fatalf("expected 3 seconds left, got %d", s.remaining)
	}

	if applied, err := s.choose("food"); err != nil || !applied {
		t.Fatalf("choose: applied=%v err=%v", applied, err)
	}
	s.advance(0)
	if s.index != 1 || s.remaining != 5 || s.selected != "" || s.feedback != nil {
		t.Fatalf("next question did not start fresh: index=%d remaining=%d selected=%q feedback=%v", s.index, s.remaining, s.selected, s.feedback)
	}
}

func TestCorrectChoiceResolvesOnce(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 5})
	s := f.session
	s.enter(0)

	applied, err := s.choose("food")
	if err != nil || !applied {
		t.Fatalf("choose: applied=%v err=%v", applied, err)
	}
	if s.phase != domain.PhaseFeedback || s.timer.Running() {
		t.Fatalf("expected feedback with timer stopped, got phase=%s running=%v", s.phase, s.timer.Running())
	}
	if s.feedback.Outcome != domain.OutcomeCorrect || s.feedback.Message != "Correct!" {
		t.Fatalf("unexpected feedback: %+v", s.feedback)
	}
	if s.score != 1 || len(s.missed) != 0 {
		t.Fatalf("unexpected score=%d missed=%v", s.score, s.missed)
	}

	// a second choice and late ticks change nothing
	if applied, err := s.choose("water"); err != nil || applied {
		t.Fatalf("expected ignored second choice, got applied=%v err=%v", applied, err)
	}
	remaining := s.remaining
	s.tick()
	if s.remaining != remaining || s.score != 1 {
		t.Fatalf("late tick changed state: remaining=%d score=%d", s.remaining, s.score)
	}
	if got := f.storedStats(t); got.Total != 1 || got.Correct != 1 {
		t.Fatalf("expected stats {1 1}, got %+v", got)
	}
	if len(f.sched.calls) != 0 {
		t.Fatalf("a chosen answer must not auto-advance, got %d schedules", len(f.sched.calls))
	}
}

func TestIncorrectChoiceRecordsMiss(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 5})
	s := f.session
	s.enter(0)

	if applied, err := s.choose("water"); err != nil || !applied {
		t.Fatalf("choose: applied=%v err=%v", applied, err)
	}
	if s.feedback.Outcome != domain.OutcomeIncorrect || s.feedback.Message != "Wrong! Answer: food" {
		t.Fatalf("unexpected feedback: %+v", s.feedback)
	}
	if s.selected != "water" || s.score != 0 || len(s.missed) != 1 || s.missed[0] != "1" {
		t.Fatalf("unexpected selected=%q score=%d missed=%v", s.selected, s.score, s.missed)
	}
	if got := f.storedStats(t); got.Total != 1 || got.Correct != 0 {
		t.Fatalf("expected stats {1 0}, got %+v", got)
	}
}

func TestChoiceNotPresentedIsRejected(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 5})
	s := f.session
	s.enter(0)

	applied, err := s.choose("moon")
	if !errors.Is(err, domain.ErrOptionNotFound) || applied {
		t.Fatalf("expected option not found, got applied=%v err=%v", applied, err)
	}
	if s.phase != domain.PhaseActive || !s.timer.Running() {
		t.Fatalf("question must stay active, got phase=%s", s.phase)
	}
}

func TestTimeoutResolvesAndSchedulesAdvance(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 3, FeedbackDelay: 2 * time.Second})
	s := f.session
	s.enter(0)

	for i := 0; i < 3; i++ {
		s.tick()
	}
	if s.phase != domain.PhaseFeedback || s.remaining != 0 {
		t.Fatalf("expected timeout feedback, got phase=%s remaining=%d", s.phase, s.remaining)
	}
	if s.feedback.Outcome != domain.OutcomeTimeout || s.feedback.Message != "Time's up! Answer: food" {
		t.Fatalf("unexpected feedback: %+v", s.feedback)
	}
	if s.selected != "" || len(s.missed) != 1 {
		t.Fatalf("unexpected selected=%q missed=%v", s.selected, s.missed)
	}
	if len(f.sched.calls) != 1 || f.sched.calls[0].delay != 2*time.Second {
		t.Fatalf("expected one auto-advance after 2s, got %+v", f.sched.calls)
	}

	s.tick()
	if applied, _ := s.choose("food"); applied {
		t.Fatalf("choice after timeout must be ignored")
	}
	if s.score != 0 || len(f.sched.calls) != 1 {
		t.Fatalf("timeout resolved twice: score=%d schedules=%d", s.score, len(f.sched.calls))
	}
	if got := f.storedStats(t); got.Total != 1 || got.Correct != 0 {
		t.Fatalf("expected stats {1 0}, got %+v", got)
	}
}

func TestAutoAdvanceIsPinnedToItsQuestion(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 1})
	s := f.session
	s.enter(0)
	s.tick()

	// the player advances before the delay elapses
	if !s.advance(s.index) {
		t.Fatalf("manual advance should apply")
	}
	if f.sched.cancelled != 1 {
		t.Fatalf("expected pending auto-advance cancelled, got %d", f.sched.cancelled)
	}
	if _, err := s.choose("love"); err != nil {
		t.Fatalf("choose: %v", err)
	}

	// a stale auto-advance for question 0 must not skip question 1's feedback
	if s.advance(0) {
		t.Fatalf("stale advance applied")
	}
	if s.index != 1 || s.phase != domain.PhaseFeedback {
		t.Fatalf("expected feedback on question 1, got index=%d phase=%s", s.index, s.phase)
	}
}

func TestAdvanceRequiresFeedback(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 5})
	s := f.session
	s.enter(0)

	if s.advance(0) {
		t.Fatalf("advance during an active question must be ignored")
	}
	if s.index != 0 || s.phase != domain.PhaseActive {
		t.Fatalf("unexpected state: index=%d phase=%s", s.index, s.phase)
	}
}

func TestFinishDeliversResultOnce(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 2})
	s := f.session
	s.enter(0)

	s.choose("food")
	s.advance(0)
	s.choose("love")
	s.advance(1)
	s.tick()
	s.tick()
	s.advance(2)

	if s.phase != domain.PhaseFinished || s.timer.Running() {
		t.Fatalf("expected finished with timer stopped, got phase=%s", s.phase)
	}
	if len(f.finished) != 1 {
		t.Fatalf("expected one completion, got %d", len(f.finished))
	}
	result := f.finished[0]
	if result.Score != 1 || result.Total != 3 || len(result.MissedIDs) != 2 || result.MissedIDs[0] != "2" || result.MissedIDs[1] != "3" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Score+len(result.MissedIDs) != result.Total {
		t.Fatalf("score and misses must cover every question: %+v", result)
	}

	if s.advance(2) {
		t.Fatalf("advance after finish must be ignored")
	}
	s.tick()
	if len(f.finished) != 1 {
		t.Fatalf("completion delivered again")
	}
	if got := f.storedStats(t); got.Total != 3 || got.Correct != 1 {
		t.Fatalf("expected stats {3 1}, got %+v", got)
	}

	snap := s.snapshot()
	if snap.Phase != domain.PhaseFinished || snap.QuestionID != "" || snap.Score != 1 {
		t.Fatalf("unexpected finished snapshot: %+v", snap)
	}
}

func TestStatsFailureDoesNotBlockResolution(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 5})
	f.stats.setErr = errStore
	s := f.session
	s.enter(0)

	if applied, err := s.choose("food"); err != nil || !applied {
		t.Fatalf("choose: applied=%v err=%v", applied, err)
	}
	if s.phase != domain.PhaseFeedback || s.score != 1 {
		t.Fatalf("resolution must succeed when stats fail, got phase=%s score=%d", s.phase, s.score)
	}
}

func TestBroadcastKeepsNewestSnapshot(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 5})
	s := f.session
	ch := make(chan domain.Snapshot, 1)
	s.subscribers[ch] = struct{}{}

	s.enter(0)
	s.tick()

	snap := <-ch
	if snap.SecondsRemaining != 4 {
		t.Fatalf("expected newest snapshot with 4s left, got %d", snap.SecondsRemaining)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions(), SessionConfig{QuestionSeconds: 5})
	s := f.session
	s.enter(0)
	s.choose("water")

	snap := s.snapshot()
	snap.Options[0] = "changed"
	snap.MissedIDs[0] = "changed"
	snap.Feedback.Message = "changed"

	if s.options[0] == "changed" || s.missed[0] == "changed" || s.feedback.Message == "changed" {
		t.Fatalf("snapshot aliases session state")
	}
}

func TestCloseBeforeStart(t *testing.T) {
	s, err := NewSession("s", "u", sampleQuestions(), nil, SessionConfig{})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.Close()
	s.Close()

	select {
	case <-s.Done():
	default:
		t.Fatalf("done must be closed")
	}
	if _, _, err := s.Select(context.Background(), "food"); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("expected closed session, got %v", err)
	}
	s.Start()
}

func TestSessionLoopAutoAdvances(t *testing.T) {
	ticks := make(chan time.Time)
	s, err := NewSession("s", "u", sampleQuestions()[:2], nil, SessionConfig{QuestionSeconds: 1},
		WithTickerFactory(func(time.Duration) Ticker { return chanTicker(ticks) }),
		WithScheduler(func(_ time.Duration, f func()) func() bool {
			go f()
			return func() bool { return false }
		}),
		WithShuffle(identity),
	)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	s.Start()
	defer s.Close()

	updates, cancel, err := s.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	ticks <- time.Now()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case snap := <-updates:
			if snap.Index == 1 && snap.Phase == domain.PhaseActive {
				return
			}
		case <-deadline:
			t.Fatalf("session did not auto-advance after timeout")
		}
	}
}

type chanTicker <-chan time.Time

func (c chanTicker) C() <-chan time.Time { return c }
func (c chanTicker) Stop()               {}

func TestTwoQuestionRunWithTimeout(t *testing.T) {
	questions := []domain.Question{
		{ID: "1", Prompt: "kia ora", CorrectAnswer: "hello", Options: []string{"hello", "goodbye", "thank you", "please"}},
		{ID: "2", Prompt: "aroha", CorrectAnswer: "love", Options: []string{"love", "hate", "peace", "war"}},
	}
	f := newSessionFixture(t, questions, SessionConfig{QuestionSeconds: 20})
	s := f.session
	s.enter(0)

	s.choose("hello")
	if s.feedback.Message != "Correct!" || s.score != 1 {
		t.Fatalf("unexpected first resolution: %+v score=%d", s.feedback, s.score)
	}
	s.advance(0)

	for i := 0; i < 20; i++ {
		s.tick()
	}
	if s.feedback.Outcome != domain.OutcomeTimeout || s.feedback.Answer != "love" {
		t.Fatalf("expected timeout showing love, got %+v", s.feedback)
	}
	s.advance(1)

	if len(f.finished) != 1 {
		t.Fatalf("expected completion, got %d", len(f.finished))
	}
	result := f.finished[0]
	if result.Score != 1 || result.Total != 2 || len(result.MissedIDs) != 1 || result.MissedIDs[0] != "2" {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := f.storedStats(t); got.Total != 2 || got.Correct != 1 {
		t.Fatalf("expected stats {2 1}, got %+v", got)
	}
}

func TestSingleWrongAnswerFinishes(t *testing.T) {
	f := newSessionFixture(t, sampleQuestions()[:1], SessionConfig{QuestionSeconds: 20})
	s := f.session
	s.enter(0)

	s.choose("house")
	if s.feedback.Message != "Wrong! Answer: food" {
		t.Fatalf("unexpected feedback %+v", s.feedback)
	}
	if !s.advance(0) || s.phase != domain.PhaseFinished {
		t.Fatalf("expected advance straight to finished, got phase=%s", s.phase)
	}
	if len(f.finished) != 1 || len(f.finished[0].MissedIDs) != 1 || f.finished[0].MissedIDs[0] != "1" {
		t.Fatalf("unexpected completion %+v", f.finished)
	}
}

func TestOptionsStableWithinQuestion(t *testing.T) {
	calls := 0
	s, err := NewSession("s", "u", sampleQuestions(), nil, SessionConfig{QuestionSeconds: 5},
		WithTickerFactory(newIdleTicker),
		WithScheduler((&captureScheduler{}).schedule),
		WithShuffle(func(options []string) []string {
			calls++
			out := append([]string(nil), options...)
			for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
				out[i], out[j] = out[j], out[i]
			}
			return out
		}),
	)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(s.teardown)

	s.enter(0)
	presented := append([]string(nil), s.options...)
	s.tick()
	s.choose("water")
	if calls != 1 {
		t.Fatalf("options reshuffled within a question: %d shuffles", calls)
	}
	for i := range presented {
		if s.options[i] != presented[i] {
			t.Fatalf("options changed from %v to %v", presented, s.options)
		}
	}
	s.advance(0)
	if calls != 2 {
		t.Fatalf("expected a fresh shuffle for the next question, got %d", calls)
	}
}
