package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrNoQuestions       = errors.New("no questions available")
	ErrNoAnswer          = errors.New("no answer selected")
	ErrOptionOutOfRange  = errors.New("option index out of range")
	ErrSubmissionPending = errors.New("submission already in progress")
)

// LoadError means the question source was unreachable or returned malformed
// data. It is fatal to the session.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return "load questions: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ValidationError rejects a user action without changing state.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SubmissionError means grading failed; the question stays unsubmitted.
type SubmissionError struct {
	QuestionIndex int
	Err           error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit question %d: %v", e.QuestionIndex, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
