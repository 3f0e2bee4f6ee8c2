package domain

import "time"

// Word is a vocabulary entry: a Māori word and its English meaning.
type Word struct {
	ID      string `json:"id"`
	Maori   string `json:"maori"`
	English string `json:"english"`
}

// Question models a multiple-choice question with exactly one correct option.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"answer"`
	Options       []string `json:"options"`
	IsReview      bool     `json:"isReview"` // previously missed by this user
}

// HasOption reports whether option is one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Phase is the position of a session in its state machine.
type Phase string

const (
	PhaseActive   Phase = "active"
	PhaseFeedback Phase = "feedback"
	PhaseFinished Phase = "finished"
)

// Outcome is how a question was resolved.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeTimeout   Outcome = "timeout"
)

// Feedback is shown between resolving a question and advancing past it.
type Feedback struct {
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
	Answer  string  `json:"answer"`
}

// Snapshot is a read-only view of a session, safe to hand to other goroutines.
type Snapshot struct {
	SessionID        string    `json:"sessionId"`
	Phase            Phase     `json:"phase"`
	Index            int       `json:"index"`
	Total            int       `json:"total"`
	QuestionID       string    `json:"questionId,omitempty"`
	Prompt           string    `json:"prompt,omitempty"`
	Options          []string  `json:"options,omitempty"`
	IsReview         bool      `json:"isReview,omitempty"`
	SecondsRemaining int       `json:"secondsRemaining"`
	Selected         string    `json:"selected,omitempty"`
	Feedback         *Feedback `json:"feedback,omitempty"`
	Score            int       `json:"score"`
	MissedIDs        []string  `json:"missedIds"`
}

// Result is delivered exactly once when a session finishes.
type Result struct {
	SessionID string   `json:"sessionId"`
	UserID    string   `json:"userId"`
	Score     int      `json:"score"`
	Total     int      `json:"total"`
	MissedIDs []string `json:"missedIds"`
}

// ErrorRate returns the share of missed questions as a percentage.
func (r Result) ErrorRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Total-r.Score) / float64(r.Total) * 100
}

// Stats is the persisted cumulative accuracy record of a user.
type Stats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// Accuracy returns correct/total as a percentage, or 0 when nothing was answered.
func (s Stats) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total) * 100
}

// MistakeReport is sent to the mistake collector when a session ends.
type MistakeReport struct {
	UserID    string   `json:"user_id"`
	MissedIDs []string `json:"wrong_word_ids"`
}

// MistakeEntry tracks how often and how recently a user missed a word.
type MistakeEntry struct {
	WordID    string    `json:"id"`
	Count     int       `json:"count"`
	LastWrong time.Time `json:"lastWrong"`
}
