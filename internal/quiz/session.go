package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-quiz/internal/analytics"
)

// Unanswered marks a question with no selected option.
const Unanswered = -1

// Config holds the collaborators of a session.
type Config struct {
	Grader Grader
	Events analytics.EventLogger // optional
	UserID string                // used for analytics only
}

// Outcome is the graded result of the latest successful submission of a question.
type Outcome struct {
	QuestionIndex int
	AnswerIndex   int
	// Correct is the grader's verdict and is what statistics count.
	Correct bool
	// LocalCorrect is the client-side letter comparison for the same answer.
	LocalCorrect  bool
	CorrectAnswer int
	CorrectOption string
	Explanation   string
}

// Divergent reports whether the grader and the local letter check disagree.
func (o Outcome) Divergent() bool {
	return o.Correct != o.LocalCorrect
}

// Session is the state of one user's pass through a question list.
// All methods are safe for concurrent use; Submit releases the lock while
// waiting for the grader.
type Session struct {
	id     string
	userID string
	grader Grader
	events analytics.EventLogger

	mu        sync.Mutex
	questions []Question
	current   int
	answers   []int
	submitted []bool
	outcomes  []Outcome
	pending   []bool
}

// New creates a session over an already fetched question list. Malformed
// questions fail the whole load with a *LoadError.
func New(questions []Question, cfg Config) (*Session, error) {
	if cfg.Grader == nil {
		return nil, fmt.Errorf("grader is required")
	}
	if err := validateQuestions(questions); err != nil {
		return nil, &LoadError{Err: err}
	}

	events := cfg.Events
	if events == nil {
		events = analytics.NopEventLogger{}
	}

	n := len(questions)
	s := &Session{
		id:        uuid.NewString(),
		userID:    cfg.UserID,
		grader:    cfg.Grader,
		events:    events,
		questions: append([]Question(nil), questions...),
		answers:   make([]int, n),
		submitted: make([]bool, n),
		outcomes:  make([]Outcome, n),
		pending:   make([]bool, n),
	}
	for i := range s.answers {
		s.answers[i] = Unanswered
	}

	s.logEvent(analytics.EventQuizLoaded, map[string]any{"questions": n})
	return s, nil
}

// Load fetches questions from src and creates a session. Any source failure
// is reported as a *LoadError.
func Load(ctx context.Context, src QuestionSource, cfg Config) (*Session, error) {
	questions, err := src.Questions(ctx)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return nil, loadErr
		}
		return nil, &LoadError{Err: err}
	}
	return New(questions, cfg)
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Len returns the number of questions.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

// CurrentIndex returns the index of the displayed question.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SelectAnswer records optionIndex as the answer to the current question.
func (s *Session) SelectAnswer(optionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.questions) == 0 {
		return &ValidationError{Err: ErrNoQuestions}
	}
	if optionIndex < 0 || optionIndex >= len(s.questions[s.current].Options) {
		return &ValidationError{Err: fmt.Errorf("%w: %d", ErrOptionOutOfRange, optionIndex)}
	}
	s.answers[s.current] = optionIndex
	return nil
}

// GoTo moves to index. Out-of-range indexes are ignored; the return value
// reports whether the index was accepted.
func (s *Session) GoTo(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(index)
}

// Next moves forward one question, stopping at the last.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.current + 1)
}

// Previous moves back one question, stopping at the first.
func (s *Session) Previous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToLocked(s.current - 1)
}

func (s *Session) goToLocked(index int) bool {
	if index < 0 || index >= len(s.questions) {
		return false
	}
	s.current = index
	return true
}

// Submit sends the current question's answer to the grader. The outcome is
// recorded against the question that was current when Submit was called,
// even if the user navigates away before the grader responds.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if len(s.questions) == 0 {
		s.mu.Unlock()
		return Outcome{}, &ValidationError{Err: ErrNoQuestions}
	}
	idx := s.current
	answer := s.answers[idx]
	if answer == Unanswered {
		s.mu.Unlock()
		return Outcome{}, &ValidationError{Err: ErrNoAnswer}
	}
	if s.pending[idx] {
		s.mu.Unlock()
		return Outcome{}, &ValidationError{Err: ErrSubmissionPending}
	}
	s.pending[idx] = true
	q := s.questions[idx]
	s.mu.Unlock()

	res, err := s.grader.Grade(ctx, GradeRequest{QuestionIndex: idx, AnswerIndex: answer})
	if err == nil && (res.CorrectAnswer < 0 || res.CorrectAnswer >= len(q.Options)) {
		err = fmt.Errorf("grader returned correct_answer %d for %d options", res.CorrectAnswer, len(q.Options))
	}

	s.mu.Lock()
	s.pending[idx] = false
	if err != nil {
		s.mu.Unlock()
		slog.Warn("submission failed",
			"session_id", s.id,
			"question_index", idx,
			"error", err,
		)
		s.logEvent(analytics.EventSubmissionFailed, map[string]any{
			"question_index": idx,
			"error":          err.Error(),
		})
		return Outcome{}, &SubmissionError{QuestionIndex: idx, Err: err}
	}

	outcome := Outcome{
		QuestionIndex: idx,
		AnswerIndex:   answer,
		Correct:       res.Correct,
		LocalCorrect:  q.IsCorrect(answer),
		CorrectAnswer: res.CorrectAnswer,
		CorrectOption: q.Options[res.CorrectAnswer],
		Explanation:   res.Explanation,
	}
	s.submitted[idx] = true
	s.outcomes[idx] = outcome
	s.mu.Unlock()

	if outcome.Divergent() {
		slog.Warn("grader and local check disagree",
			"session_id", s.id,
			"question_index", idx,
			"grader_correct", outcome.Correct,
			"local_correct", outcome.LocalCorrect,
		)
	}
	s.logEvent(analytics.EventAnswerSubmitted, map[string]any{
		"question_index": idx,
		"answer_index":   answer,
		"correct":        outcome.Correct,
		"local_correct":  outcome.LocalCorrect,
	})
	return outcome, nil
}

func (s *Session) logEvent(eventType string, data map[string]any) {
	if err := s.events.LogEvent(analytics.Event{
		SessionID: s.id,
		UserID:    s.userID,
		EventType: eventType,
		Data:      data,
	}); err != nil {
		slog.Warn("failed to log quiz event", "type", eventType, "error", err)
	}
}
