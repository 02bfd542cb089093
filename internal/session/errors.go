package session

import "errors"

var (
	// ErrSessionRequired is returned when the session identifier is blank.
	ErrSessionRequired = errors.New("session id is required")

	// ErrInterviewRequired is returned when the interview identifier is blank.
	ErrInterviewRequired = errors.New("interview id is required")

	// ErrSessionActive is returned by Start while an interview is running.
	ErrSessionActive = errors.New("interview session already active")

	// ErrNotReady is returned by StartAnswer outside the preparing step.
	ErrNotReady = errors.New("no question ready for answering")

	// ErrNoAnswerInProgress is returned by Advance outside the answering step.
	ErrNoAnswerInProgress = errors.New("no answer in progress")

	// ErrAnswerInProgress is returned by JumpToQuestion while answering.
	ErrAnswerInProgress = errors.New("answer in progress")
)
