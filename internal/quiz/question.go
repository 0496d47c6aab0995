// Package quiz holds the client-side state of a multiple-choice quiz session.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

// Question is a single quiz item. Options are formatted as "<Letter>. <text>".
type Question struct {
	Scenario      string   `json:"scenario" yaml:"scenario"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer string   `json:"correct_answer" yaml:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
}

// GradeRequest is sent to the grading collaborator.
type GradeRequest struct {
	QuestionIndex int `json:"question"`
	AnswerIndex   int `json:"answer"`
}

// GradeResult is the grader's verdict. CorrectAnswer is an option index,
// unlike Question.CorrectAnswer which is a letter code.
type GradeResult struct {
	Correct           bool
	CorrectAnswer     int
	CorrectAnswerText string
	Explanation       string
}

// QuestionSource fetches the ordered question list for a session.
type QuestionSource interface {
	Questions(ctx context.Context) ([]Question, error)
}

// Grader grades one submitted answer.
type Grader interface {
	Grade(ctx context.Context, req GradeRequest) (GradeResult, error)
}

// Validate checks that the required fields are present.
func (q Question) Validate() error {
	var errs []error
	if strings.TrimSpace(q.Scenario) == "" {
		errs = append(errs, errors.New("scenario is required"))
	}
	if len(q.Options) == 0 {
		errs = append(errs, errors.New("options are required"))
	}
	if LetterOf(q.CorrectAnswer) == "" {
		errs = append(errs, errors.New("correct_answer is required"))
	}
	return errors.Join(errs...)
}

// CorrectLetter returns the normalized letter code of the correct answer.
// Values given as full option text ("B. y") reduce to their leading letter.
func (q Question) CorrectLetter() string {
	return LetterOf(q.CorrectAnswer)
}

// IsCorrect reports whether the option at optionIndex carries the correct letter.
func (q Question) IsCorrect(optionIndex int) bool {
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return false
	}
	want := q.CorrectLetter()
	return want != "" && LetterOf(q.Options[optionIndex]) == want
}

// CorrectIndex resolves the correct option index, first by exact option text,
// then by leading letter.
func (q Question) CorrectIndex() (int, bool) {
	want := strings.TrimSpace(q.CorrectAnswer)
	for i, opt := range q.Options {
		if strings.TrimSpace(opt) == want {
			return i, true
		}
	}
	return q.OptionByLetter(q.CorrectAnswer)
}

// OptionByLetter returns the index of the first option whose leading letter
// matches the leading letter of s.
func (q Question) OptionByLetter(s string) (int, bool) {
	want := LetterOf(s)
	if want == "" {
		return 0, false
	}
	for i, opt := range q.Options {
		if LetterOf(opt) == want {
			return i, true
		}
	}
	return 0, false
}

// LetterOf returns the leading character of s, width-folded and upper-cased,
// so "b. text", "B" and the full-width "Ｂ" all map to "B".
func LetterOf(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ""
	}
	// Casers are stateful; one per call keeps LetterOf goroutine-safe.
	return cases.Upper(language.Und).String(width.Fold.String(string(r)))
}

func validateQuestions(questions []Question) error {
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}
