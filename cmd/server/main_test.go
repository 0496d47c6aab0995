package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/agent"
	"github.com/p-n-ai/pai-quiz/internal/analytics"
	"github.com/p-n-ai/pai-quiz/internal/chat"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

func TestHealthEndpoints(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		path       string
		checks     map[string]checkFunc
		wantStatus int
		wantBody   string
	}{
		{
			name:       "healthz returns 200",
			path:       "/healthz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "readyz without checks returns 200",
			path:       "/readyz",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
		{
			name:       "readyz with healthy checks returns 200",
			path:       "/readyz",
			checks:     map[string]checkFunc{"cache": ok, "database": ok},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
		{
			name:       "readyz reports failed checks",
			path:       "/readyz",
			checks:     map[string]checkFunc{"cache": ok, "database": down, "events": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"failed":["database","events"],"status":"not ready"}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newMux(tt.checks, nil)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNewMux_WebRoutes(t *testing.T) {
	ws, err := chat.NewWebSocketChannel([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewWebSocketChannel() error = %v", err)
	}

	withWeb := newMux(nil, ws)
	rec := httptest.NewRecorder()
	withWeb.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<html") {
		t.Errorf("GET / = %d, want quiz page", rec.Code)
	}

	withoutWeb := newMux(nil, nil)
	rec = httptest.NewRecorder()
	withoutWeb.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /ws without web view = %d, want 404", rec.Code)
	}
}

func TestNewHandler_RepliesOnSameChannel(t *testing.T) {
	questions := []quiz.Question{
		{Scenario: "Pick y", Options: []string{"A. x", "B. y"}, CorrectAnswer: "B"},
	}
	engine := agent.NewEngine(agent.EngineConfig{
		Source: quiz.StaticSource{List: questions},
		Grader: quiz.NewMockGrader(questions),
	})

	gw := chat.NewGateway()
	mock := &chat.MockChannel{}
	gw.Register("telegram", mock)

	handle := newHandler(t.Context(), engine, gw)
	for _, text := range []string{"/start", "b", "/submit"} {
		handle(chat.InboundMessage{Channel: "telegram", UserID: "42", Text: text})
	}

	sent := mock.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent = %d messages, want 3", len(sent))
	}
	if sent[0].UserID != "42" || sent[0].Channel != "telegram" {
		t.Errorf("reply addressed to %s/%s", sent[0].Channel, sent[0].UserID)
	}
	if !strings.Contains(sent[2].Text, "✅ Correct! Well done.") {
		t.Errorf("submit reply = %q", sent[2].Text)
	}
}

func writeQuestionsFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.yaml")
	content := `- scenario: Pick y
  options: ["A. x", "B. y"]
  correct_answer: B
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewServices_FileSourceAndSQLiteEvents(t *testing.T) {
	cfg := &config.Config{
		Quiz: config.QuizConfig{
			APIURL:         "http://localhost:5000",
			QuestionsFile:  writeQuestionsFile(t),
			RequestTimeout: time.Second,
		},
		Cache:  config.CacheConfig{TTL: time.Minute},
		Events: config.EventsConfig{SQLitePath: filepath.Join(t.TempDir(), "events.db")},
	}

	svc, err := newServices(t.Context(), cfg)
	if err != nil {
		t.Fatalf("newServices() error = %v", err)
	}
	defer svc.close()

	questions, err := svc.source.Questions(t.Context())
	if err != nil {
		t.Fatalf("Questions() error = %v", err)
	}
	if len(questions) != 1 || questions[0].CorrectAnswer != "B" {
		t.Errorf("questions = %+v", questions)
	}
	if _, ok := svc.events.(*analytics.SQLiteEventLogger); !ok {
		t.Errorf("events = %T, want *analytics.SQLiteEventLogger", svc.events)
	}
	if _, ok := svc.checks["events"]; !ok {
		t.Error("SQLite event store should be part of readiness")
	}
	if svc.grader == nil {
		t.Error("grader should be configured")
	}
}

func TestNewServices_Defaults(t *testing.T) {
	cfg := &config.Config{
		Quiz: config.QuizConfig{APIURL: "http://localhost:5000", RequestTimeout: time.Second},
	}

	svc, err := newServices(t.Context(), cfg)
	if err != nil {
		t.Fatalf("newServices() error = %v", err)
	}
	defer svc.close()

	if _, ok := svc.events.(analytics.NopEventLogger); !ok {
		t.Errorf("events = %T, want NopEventLogger", svc.events)
	}
	if len(svc.checks) != 0 {
		t.Errorf("checks = %d, want none without external services", len(svc.checks))
	}
}

func TestNewServices_UnreachableCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	cfg := &config.Config{
		Quiz:  config.QuizConfig{APIURL: "http://localhost:5000", RequestTimeout: time.Second},
		Cache: config.CacheConfig{URL: "redis://localhost:59999"},
	}
	if _, err := newServices(t.Context(), cfg); err == nil {
		t.Fatal("newServices() should fail when the cache is unreachable")
	}
}
