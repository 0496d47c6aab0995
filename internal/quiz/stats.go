package quiz

// QuestionState is the implicit per-question state.
type QuestionState int

const (
	StateUnanswered QuestionState = iota
	StateAnswered
	StateCorrect
	StateIncorrect
)

func (st QuestionState) String() string {
	switch st {
	case StateUnanswered:
		return "unanswered"
	case StateAnswered:
		return "answered"
	case StateCorrect:
		return "correct"
	case StateIncorrect:
		return "incorrect"
	default:
		return "unknown"
	}
}

// Submitted reports whether the state is one of the graded states.
func (st QuestionState) Submitted() bool {
	return st == StateCorrect || st == StateIncorrect
}

// Stats are derived from session state on every call and never stored.
type Stats struct {
	Total           int
	Answered        int
	Submitted       int
	Correct         int
	Incorrect       int
	Remaining       int
	ScorePercentage int
}

// Stats computes the current statistics.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() Stats {
	st := Stats{Total: len(s.questions)}
	for i := range s.questions {
		if s.answers[i] != Unanswered {
			st.Answered++
		}
		if !s.submitted[i] {
			continue
		}
		st.Submitted++
		if s.outcomes[i].Correct {
			st.Correct++
		}
	}
	st.Incorrect = st.Submitted - st.Correct
	st.Remaining = st.Total - st.Submitted
	st.ScorePercentage = percent(st.Correct, st.Submitted)
	return st
}

// percent rounds 100*part/whole half up, and is 0 when whole is 0.
func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (200*part + whole) / (2 * whole)
}

// State returns the state of question i.
func (s *Session) State(i int) QuestionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.questions) {
		return StateUnanswered
	}
	return s.stateLocked(i)
}

func (s *Session) stateLocked(i int) QuestionState {
	switch {
	case s.submitted[i] && s.outcomes[i].Correct:
		return StateCorrect
	case s.submitted[i]:
		return StateIncorrect
	case s.answers[i] != Unanswered:
		return StateAnswered
	default:
		return StateUnanswered
	}
}

// IsAnswerCorrect applies the local letter check to the selected answer of
// question i. It is a display fallback; counted outcomes come from the grader.
func (s *Session) IsAnswerCorrect(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.questions) || s.answers[i] == Unanswered {
		return false
	}
	return s.questions[i].IsCorrect(s.answers[i])
}
