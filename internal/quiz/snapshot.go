package quiz

// Snapshot is a read-only copy of what a view needs to render the current
// question, the navigation grid and the stats panel.
type Snapshot struct {
	SessionID string
	Total     int
	Current   int
	Question  Question
	Selected  int
	State     QuestionState
	Outcome   *Outcome // latest graded outcome of the current question
	Pending   bool     // a submission for the current question is in flight
	CanPrev   bool
	CanNext   bool
	Stats     Stats
	Grid      []QuestionState
}

// Empty reports whether the session has no questions.
func (sn Snapshot) Empty() bool {
	return sn.Total == 0
}

// Snapshot copies the state needed for rendering.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn := Snapshot{
		SessionID: s.id,
		Total:     len(s.questions),
		Current:   s.current,
		Selected:  Unanswered,
		Stats:     s.statsLocked(),
		Grid:      make([]QuestionState, len(s.questions)),
	}
	for i := range s.questions {
		sn.Grid[i] = s.stateLocked(i)
	}
	if sn.Total == 0 {
		return sn
	}

	i := s.current
	q := s.questions[i]
	q.Options = append([]string(nil), q.Options...)
	sn.Question = q
	sn.Selected = s.answers[i]
	sn.State = sn.Grid[i]
	sn.Pending = s.pending[i]
	sn.CanPrev = i > 0
	sn.CanNext = i < len(s.questions)-1
	if s.submitted[i] {
		o := s.outcomes[i]
		sn.Outcome = &o
	}
	return sn
}

// ReviewItem summarizes one question for reports.
type ReviewItem struct {
	Index    int
	Question Question
	Selected int
	State    QuestionState
	Outcome  *Outcome
}

// Review returns every question with its selection and graded outcome.
func (s *Session) Review() []ReviewItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]ReviewItem, len(s.questions))
	for i, q := range s.questions {
		item := ReviewItem{
			Index:    i,
			Question: q,
			Selected: s.answers[i],
			State:    s.stateLocked(i),
		}
		if s.submitted[i] {
			o := s.outcomes[i]
			item.Outcome = &o
		}
		items[i] = item
	}
	return items
}
