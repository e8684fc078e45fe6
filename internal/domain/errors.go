package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizClosed is returned when the quiz no longer accepts responses.
	ErrQuizClosed = errors.New("quiz is closed")
	// ErrAlreadySubmitted is returned when the duplicate-submission marker
	// is already set for the quiz.
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	// ErrNoQuestions indicates a definition with an empty question list.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrBadDefinition indicates a choice question with fewer than two
	// distinct options.
	ErrBadDefinition = errors.New("invalid quiz definition")
	// ErrSessionFinished is returned when input arrives after the session
	// reached a terminal state.
	ErrSessionFinished = errors.New("session already finished")
)
