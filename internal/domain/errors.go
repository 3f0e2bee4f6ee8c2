package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session is unknown or already ended.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionClosed is returned when an operation reaches a session that has been closed.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrEmptyQuestionSet is returned when a session would start without questions.
	ErrEmptyQuestionSet = errors.New("empty question set")
	// ErrInvalidQuestion indicates a question with fewer than two distinct options, a repeated option or a missing correct answer.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrNoWords indicates the vocabulary cannot produce a quiz.
	ErrNoWords = errors.New("no words available for quiz")
	// ErrSessionNotFinished is returned when a completion is requested before the last question.
	ErrSessionNotFinished = errors.New("quiz session not finished")
	// ErrOptionNotFound indicates a selected option was not presented for the current question.
	ErrOptionNotFound = errors.New("option not found")
)
