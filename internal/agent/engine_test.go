package agent_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/p-n-ai/pai-quiz/internal/agent"
	"github.com/p-n-ai/pai-quiz/internal/analytics"
	"github.com/p-n-ai/pai-quiz/internal/chat"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/render"
)

func sampleQuestions() []quiz.Question {
	return []quiz.Question{
		{Scenario: "Pick y", Options: []string{"A. x", "B. y"}, CorrectAnswer: "B", Explanation: "y is right."},
		{Scenario: "Pick p", Options: []string{"A. p", "B. q", "C. r"}, CorrectAnswer: "A"},
		{Scenario: "Pick r", Options: []string{"A. p", "B. q", "C. r"}, CorrectAnswer: "C"},
	}
}

type fakeReporter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *fakeReporter) Export(_ context.Context, userKey string, _ *quiz.Session) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, userKey)
	if r.err != nil {
		return "", r.err
	}
	return "/tmp/" + userKey + ".xlsx", nil
}

func newEngine(t *testing.T, cfg agent.EngineConfig) *agent.Engine {
	t.Helper()
	if cfg.Source == nil {
		cfg.Source = quiz.StaticSource{List: sampleQuestions()}
	}
	if cfg.Grader == nil {
		cfg.Grader = quiz.NewMockGrader(sampleQuestions())
	}
	return agent.NewEngine(cfg)
}

func send(t *testing.T, e *agent.Engine, text string) string {
	t.Helper()
	resp, err := e.ProcessMessage(context.Background(), chat.InboundMessage{
		Channel:   "telegram",
		UserID:    "123",
		Text:      text,
		FirstName: "Ali",
	})
	if err != nil {
		t.Fatalf("ProcessMessage(%q) error = %v", text, err)
	}
	return resp
}

func TestEngine_Start(t *testing.T) {
	e := newEngine(t, agent.EngineConfig{})

	resp := send(t, e, "/start")
	for _, want := range []string{"Hi Ali", "3 questions", "Question 1 of 3", "Pick y"} {
		if !strings.Contains(resp, want) {
			t.Errorf("/start response missing %q:\n%s", want, resp)
		}
	}
}

func TestEngine_Start_FallbackName(t *testing.T) {
	e := newEngine(t, agent.EngineConfig{})

	resp, err := e.ProcessMessage(context.Background(), chat.InboundMessage{Channel: "terminal", UserID: "local", Text: "/start"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if !strings.Contains(resp, "Hi there!") {
		t.Errorf("expected fallback greeting, got: %s", resp)
	}
}

func TestEngine_Start_EmptyQuiz(t *testing.T) {
	e := newEngine(t, agent.EngineConfig{Source: quiz.StaticSource{List: []quiz.Question{}}})

	if resp := send(t, e, "/start"); resp != render.MsgNoQuestions {
		t.Errorf("/start = %q, want %q", resp, render.MsgNoQuestions)
	}
	if resp := send(t, e, "/stats"); !strings.Contains(resp, "Score: 0%") {
		t.Errorf("/stats on empty quiz = %q", resp)
	}
}

func TestEngine_Start_LoadFailureBlocksQuiz(t *testing.T) {
	src := &toggleSource{err: errors.New("connection refused")}
	e := newEngine(t, agent.EngineConfig{Source: src})

	if resp := send(t, e, "/start"); resp != render.MsgLoadFailed {
		t.Fatalf("/start = %q, want %q", resp, render.MsgLoadFailed)
	}
	if resp := send(t, e, "/next"); !strings.Contains(resp, "/start") {
		t.Errorf("quiz commands after a failed load should point to /start, got %q", resp)
	}

	src.set(nil)
	if resp := send(t, e, "/start"); !strings.Contains(resp, "Question 1 of 3") {
		t.Errorf("/start after recovery = %q", resp)
	}
}

func TestEngine_Start_ReplacesSession(t *testing.T) {
	e := newEngine(t, agent.EngineConfig{})
	send(t, e, "/start")
	send(t, e, "b")
	send(t, e, "/submit")

	send(t, e, "/start")
	if resp := send(t, e, "/stats"); !strings.Contains(resp, "Remaining: 3") {
		t.Errorf("new /start should reset progress, /stats = %q", resp)
	}
}

func TestEngine_NoSession(t *testing.T) {
	e := newEngine(t, agent.EngineConfig{})

	for _, text := range []string{"/next", "/prev", "/submit", "/stats", "/grid", "/go 2", "b"} {
		if resp := send(t, e, text); !strings.Contains(resp, "/start") {
			t.Errorf("%s without session = %q, want /start hint", text, resp)
		}
	}
}

func TestEngine_HelpAndUnknown(t *testing.T) {
	e := newEngine(t, agent.EngineConfig{})

	if resp := send(t, e, "/help"); !strings.Contains(resp, "/submit") {
		t.Errorf("/help = %q", resp)
	}
	if resp := send(t, e, "/dance"); !strings.Contains(resp, "Unknown command: /dance") {
		t.Errorf("/dance = %q", resp)
	}
}

func TestEngine_Navigation(t *testing.T) {
	e := newEngine(t, agent.EngineConfig{})
	send(t, e, "/start")

	if resp := send(t, e, "/prev"); !strings.Contains(resp, "first question") || !strings.Contains(resp, "Question 1 of 3") {
		t.Errorf("/prev at start = %q", resp)
	}
	if resp := send(t, e, "/next"); !strings.Contains(resp, "Question 2 of 3") {
		t.Errorf("/next = %q", resp)
	}
	if resp := send(t, e, "/go 3"); !strings.Contains(resp, "Question 3 of 3") {
		t.Errorf("/go 3 = %q", resp)
	}
	if resp := send(t, e, "/next"); !strings.Contains(resp, "last question") || !strings.Contains(resp, "Question 3 of 3") {
		t.Errorf("/next at end = %q", resp)
	}
	if resp := send(t, e, "/go 9"); !strings.Contains(resp, "no question 9") {
		t.Errorf("/go 9 = %q", resp)
	}
	if resp := send(t, e, "/go x"); !strings.Contains(resp, "Usage: /go N") {
		t.Errorf("/go x = %q", resp)
	}
	if resp := send(t, e, "/PREV"); !strings.Contains(resp, "Question 2 of 3") {
		t.Errorf("/PREV = %q", resp)
	}
}

func TestEngine_SelectAnswer(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare letter", "b", "(•) B. y"},
		{"bare number", "1", "(•) A. x"},
		{"letter with dot", "B.", "(•) B. y"},
		{"answer command", "/answer A", "(•) A. x"},
		{"full width letter", "Ｂ", "(•) B. y"},
		{"unknown letter", "z", render.MsgNoSuchOption},
		{"number out of range", "7", render.MsgNoSuchOption},
		{"answer without option", "/answer", "Usage: /answer X"},
		{"free text", "what is this", "Send the letter or number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, agent.EngineConfig{})
			send(t, e, "/start")

			if resp := send(t, e, tt.text); !strings.Contains(resp, tt.want) {
				t.Errorf("%q = %q, want it to contain %q", tt.text, resp, tt.want)
			}
		})
	}
}

func TestEngine_SubmitWithoutSelection(t *testing.T) {
	grader := quiz.NewMockGrader(sampleQuestions())
	e := newEngine(t, agent.EngineConfig{Grader: grader})
	send(t, e, "/start")

	if resp := send(t, e, "/submit"); resp != render.MsgSelectFirst {
		t.Errorf("/submit = %q, want %q", resp, render.MsgSelectFirst)
	}
	if len(grader.Requests()) != 0 {
		t.Error("grader should not be called without a selection")
	}
}

func TestEngine_SubmitCorrectAndIncorrect(t *testing.T) {
	e := newEngine(t, agent.EngineConfig{})
	send(t, e, "/start")

	send(t, e, "b")
	resp := send(t, e, "/submit")
	for _, want := range []string{"✅ Correct! Well done.", "Explanation:\ny is right.", "Progress: 1/3"} {
		if !strings.Contains(resp, want) {
			t.Errorf("/submit missing %q:\n%s", want, resp)
		}
	}

	send(t, e, "/next")
	send(t, e, "c")
	resp = send(t, e, "/submit")
	if !strings.Contains(resp, "❌ Incorrect. The correct answer is: A. p") {
		t.Errorf("/submit incorrect = %q", resp)
	}

	stats := send(t, e, "/stats")
	for _, want := range []string{"Correct: 1", "Incorrect: 1", "Remaining: 1", "Score: 50%"} {
		if !strings.Contains(stats, want) {
			t.Errorf("/stats missing %q:\n%s", want, stats)
		}
	}

	if grid := send(t, e, "/grid"); grid != "1✓ [2] 3" {
		t.Errorf("/grid = %q, want %q", grid, "1✓ [2] 3")
	}
}

func TestEngine_SubmitFailure(t *testing.T) {
	grader := quiz.NewMockGrader(sampleQuestions())
	grader.Err = errors.New("timeout")
	events := analytics.NewMemoryEventLogger()
	e := newEngine(t, agent.EngineConfig{Grader: grader, Events: events})
	send(t, e, "/start")
	send(t, e, "b")

	if resp := send(t, e, "/submit"); resp != render.MsgSubmitFailed {
		t.Fatalf("/submit = %q, want %q", resp, render.MsgSubmitFailed)
	}
	if resp := send(t, e, "/stats"); !strings.Contains(resp, "Remaining: 3") {
		t.Errorf("failed submission should not count, /stats = %q", resp)
	}

	var failed int
	for _, ev := range events.Events() {
		if ev.EventType == analytics.EventSubmissionFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("submission_failed events = %d, want 1", failed)
	}
}

func TestEngine_SessionsArePerUser(t *testing.T) {
	e := newEngine(t, agent.EngineConfig{})
	ctx := context.Background()

	for _, id := range []string{"1", "2"} {
		if _, err := e.ProcessMessage(ctx, chat.InboundMessage{Channel: "telegram", UserID: id, Text: "/start"}); err != nil {
			t.Fatalf("ProcessMessage() error = %v", err)
		}
	}
	if _, err := e.ProcessMessage(ctx, chat.InboundMessage{Channel: "telegram", UserID: "1", Text: "/next"}); err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}

	resp, err := e.ProcessMessage(ctx, chat.InboundMessage{Channel: "telegram", UserID: "2", Text: "/grid"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if resp != "[1] 2 3" {
		t.Errorf("user 2 grid = %q, want %q", resp, "[1] 2 3")
	}

	resp, err = e.ProcessMessage(ctx, chat.InboundMessage{Channel: "websocket", UserID: "1", Text: "/grid"})
	if err != nil {
		t.Fatalf("ProcessMessage() error = %v", err)
	}
	if !strings.Contains(resp, "/start") {
		t.Errorf("same user ID on another channel should have no session, got %q", resp)
	}
}

func TestEngine_Export(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		e := newEngine(t, agent.EngineConfig{})
		send(t, e, "/start")
		if resp := send(t, e, "/export"); !strings.Contains(resp, "not enabled") {
			t.Errorf("/export = %q", resp)
		}
	})

	t.Run("saved", func(t *testing.T) {
		reporter := &fakeReporter{}
		e := newEngine(t, agent.EngineConfig{Reporter: reporter})
		send(t, e, "/start")
		if resp := send(t, e, "/export"); resp != "Report saved: /tmp/telegram:123.xlsx" {
			t.Errorf("/export = %q", resp)
		}
		if len(reporter.calls) != 1 || reporter.calls[0] != "telegram:123" {
			t.Errorf("reporter calls = %v", reporter.calls)
		}
	})

	t.Run("failure", func(t *testing.T) {
		e := newEngine(t, agent.EngineConfig{Reporter: &fakeReporter{err: errors.New("disk full")}})
		send(t, e, "/start")
		if resp := send(t, e, "/export"); !strings.Contains(resp, "Failed to export") {
			t.Errorf("/export = %q", resp)
		}
	})
}

type toggleSource struct {
	mu  sync.Mutex
	err error
}

func (s *toggleSource) set(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *toggleSource) Questions(_ context.Context) ([]quiz.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return sampleQuestions(), nil
}
