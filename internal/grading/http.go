// Package grading talks to the quiz server's answer-checking endpoint.
package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// HTTPGrader posts answers to {baseURL}/api/answer.
type HTTPGrader struct {
	baseURL string
	client  *http.Client
}

// Option configures an HTTPGrader.
type Option func(*HTTPGrader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *HTTPGrader) {
		g.client = client
	}
}

// NewHTTPGrader creates a grader for the quiz API at baseURL.
func NewHTTPGrader(baseURL string, opts ...Option) *HTTPGrader {
	g := &HTTPGrader{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type answerResponse struct {
	Correct           *bool  `json:"correct"`
	CorrectAnswer     *int   `json:"correct_answer"`
	CorrectAnswerText string `json:"correct_answer_text"`
	Explanation       string `json:"explanation"`
	Error             string `json:"error"`
}

func (g *HTTPGrader) Grade(ctx context.Context, req quiz.GradeRequest) (quiz.GradeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return quiz.GradeResult{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/answer", bytes.NewReader(body))
	if err != nil {
		return quiz.GradeResult{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return quiz.GradeResult{}, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return quiz.GradeResult{}, fmt.Errorf("read response: %w", err)
	}

	var ar answerResponse
	decodeErr := json.Unmarshal(respBody, &ar)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && ar.Error != "" {
			msg = ar.Error
		}
		return quiz.GradeResult{}, fmt.Errorf("grader error (status %d): %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return quiz.GradeResult{}, fmt.Errorf("unmarshal response: %w", decodeErr)
	}
	if ar.Correct == nil || ar.CorrectAnswer == nil {
		return quiz.GradeResult{}, fmt.Errorf("grader response missing correct or correct_answer")
	}

	return quiz.GradeResult{
		Correct:           *ar.Correct,
		CorrectAnswer:     *ar.CorrectAnswer,
		CorrectAnswerText: ar.CorrectAnswerText,
		Explanation:       ar.Explanation,
	}, nil
}
