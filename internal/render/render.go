// Package render turns quiz session snapshots into chat text.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// User-facing messages.
const (
	MsgNoQuestions       = "No questions available."
	MsgLoadFailed        = "Failed to load questions. Please try again later."
	MsgSelectFirst       = "Please select an answer before submitting."
	MsgSubmitFailed      = "Failed to submit answer. Please try again."
	MsgSubmissionPending = "Your answer is still being graded."
	MsgNoSuchOption      = "That option does not exist for this question."
	MsgUnexpected        = "Something went wrong. Please try again."
)

const (
	progressBarWidth = 10
	gridRowLen       = 10
)

// Question renders the current question card, including feedback for an
// already graded question.
func Question(sn quiz.Snapshot) string {
	if sn.Empty() {
		return MsgNoQuestions
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question %d of %d\n\n", sn.Current+1, sn.Total)
	b.WriteString(sn.Question.Scenario)
	b.WriteString("\n\n")

	for i, opt := range sn.Question.Options {
		if opt == "" {
			opt = fmt.Sprintf("Option %d", i+1)
		}
		marker := "( )"
		if i == sn.Selected {
			marker = "(•)"
		}
		fmt.Fprintf(&b, "%s %s\n", marker, opt)
	}

	b.WriteString("\n")
	b.WriteString(Progress(sn.Stats))
	b.WriteString("\n")
	b.WriteString(Controls(sn))

	switch {
	case sn.Pending:
		b.WriteString("\n\n")
		b.WriteString(MsgSubmissionPending)
	case sn.Outcome != nil:
		b.WriteString("\n\n")
		b.WriteString(Feedback(*sn.Outcome))
	}
	return b.String()
}

// Feedback renders the graded outcome of one submission.
func Feedback(o quiz.Outcome) string {
	var b strings.Builder
	if o.Correct {
		b.WriteString("✅ Correct! Well done.")
	} else {
		fmt.Fprintf(&b, "❌ Incorrect. The correct answer is: %s", o.CorrectOption)
	}
	if explanation := strings.TrimSpace(o.Explanation); explanation != "" {
		b.WriteString("\n\nExplanation:\n")
		b.WriteString(explanation)
	}
	return b.String()
}

// Progress renders the answered-questions line.
func Progress(st quiz.Stats) string {
	return fmt.Sprintf("Progress: %d/%d questions answered", st.Answered, st.Total)
}

// Controls lists the navigation commands that are currently enabled.
func Controls(sn quiz.Snapshot) string {
	var controls []string
	if sn.CanPrev {
		controls = append(controls, "/prev")
	}
	if sn.CanNext {
		controls = append(controls, "/next")
	}
	if !sn.Pending {
		controls = append(controls, "/submit")
	}
	return strings.Join(controls, " · ")
}

// Stats renders the stats panel.
func Stats(st quiz.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✔ Correct: %d\n", st.Correct)
	fmt.Fprintf(&b, "✘ Incorrect: %d\n", st.Incorrect)
	fmt.Fprintf(&b, "… Remaining: %d\n", st.Remaining)
	fmt.Fprintf(&b, "Score: %d%%\n", st.ScorePercentage)

	filled := 0
	if st.Total > 0 {
		filled = st.Submitted * progressBarWidth / st.Total
	}
	fmt.Fprintf(&b, "[%s%s] %d / %d",
		strings.Repeat("█", filled),
		strings.Repeat("░", progressBarWidth-filled),
		st.Submitted, st.Total,
	)
	return b.String()
}

// Grid renders one cell per question: [n] current, n✓ correct, n✗
// incorrect, n• answered but not submitted.
func Grid(sn quiz.Snapshot) string {
	if sn.Empty() {
		return MsgNoQuestions
	}

	var b strings.Builder
	for i, st := range sn.Grid {
		if i > 0 {
			if i%gridRowLen == 0 {
				b.WriteString("\n")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(cell(i, st, i == sn.Current))
	}
	return b.String()
}

func cell(i int, st quiz.QuestionState, current bool) string {
	n := fmt.Sprintf("%d", i+1)
	if current {
		return "[" + n + "]"
	}
	switch st {
	case quiz.StateCorrect:
		return n + "✓"
	case quiz.StateIncorrect:
		return n + "✗"
	case quiz.StateAnswered:
		return n + "•"
	default:
		return n
	}
}

// Error maps a session error to the message shown to the user.
func Error(err error) string {
	var loadErr *quiz.LoadError
	var subErr *quiz.SubmissionError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &loadErr):
		return MsgLoadFailed
	case errors.Is(err, quiz.ErrNoAnswer):
		return MsgSelectFirst
	case errors.Is(err, quiz.ErrSubmissionPending):
		return MsgSubmissionPending
	case errors.Is(err, quiz.ErrOptionOutOfRange):
		return MsgNoSuchOption
	case errors.Is(err, quiz.ErrNoQuestions):
		return MsgNoQuestions
	case errors.As(err, &subErr):
		return MsgSubmitFailed
	default:
		return MsgUnexpected
	}
}
