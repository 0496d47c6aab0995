package quiz

import (
	"context"
	"fmt"
	"sync"
)

// StaticSource is a QuestionSource returning a fixed list. Useful for tests.
type StaticSource struct {
	List []Question
	Err  error
}

func (s StaticSource) Questions(_ context.Context) ([]Question, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.List, nil
}

// MockGrader is a test double for Grader. Without an override it grades
// against Questions the way the quiz server does.
type MockGrader struct {
	Questions []Question
	Err       error
	Result    *GradeResult // overrides grading when set

	mu       sync.Mutex
	requests []GradeRequest
}

// NewMockGrader creates a MockGrader over questions.
func NewMockGrader(questions []Question) *MockGrader {
	return &MockGrader{Questions: questions}
}

func (m *MockGrader) Grade(_ context.Context, req GradeRequest) (GradeResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Err != nil {
		return GradeResult{}, m.Err
	}
	if m.Result != nil {
		return *m.Result, nil
	}
	if req.QuestionIndex < 0 || req.QuestionIndex >= len(m.Questions) {
		return GradeResult{}, fmt.Errorf("invalid question index %d", req.QuestionIndex)
	}
	q := m.Questions[req.QuestionIndex]
	idx, ok := q.CorrectIndex()
	if !ok {
		return GradeResult{}, fmt.Errorf("could not determine correct answer")
	}
	return GradeResult{
		Correct:           req.AnswerIndex == idx,
		CorrectAnswer:     idx,
		CorrectAnswerText: q.CorrectAnswer,
		Explanation:       q.Explanation,
	}, nil
}

// Requests returns the grade requests received so far.
func (m *MockGrader) Requests() []GradeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GradeRequest{}, m.requests...)
}
