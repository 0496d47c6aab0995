package analytics

import (
	"path/filepath"
	"testing"
)

func TestSQLiteEventLogger_LogAndCount(t *testing.T) {
	logger, err := NewSQLiteEventLogger(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("NewSQLiteEventLogger() error = %v", err)
	}
	defer logger.Close()

	for i := 0; i < 3; i++ {
		if err := logger.LogEvent(Event{
			SessionID: "sess-1",
			UserID:    "user-1",
			EventType: EventAnswerSubmitted,
			Data:      map[string]any{"question_index": i},
		}); err != nil {
			t.Fatalf("LogEvent() error = %v", err)
		}
	}
	if err := logger.LogEvent(Event{SessionID: "sess-1", EventType: EventQuizLoaded}); err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	n, err := logger.CountEvents(t.Context(), "sess-1", EventAnswerSubmitted)
	if err != nil {
		t.Fatalf("CountEvents() error = %v", err)
	}
	if n != 3 {
		t.Errorf("CountEvents() = %d, want 3", n)
	}

	var key string
	if err := logger.db.QueryRow(`SELECT user_key FROM quiz_events WHERE event_type = ? LIMIT 1`, EventAnswerSubmitted).Scan(&key); err != nil {
		t.Fatalf("query user_key: %v", err)
	}
	if key != UserKey("user-1") {
		t.Errorf("user_key = %q, want hashed user id", key)
	}
}

func TestSQLiteEventLogger_RejectsIncompleteEvent(t *testing.T) {
	logger, err := NewSQLiteEventLogger(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("NewSQLiteEventLogger() error = %v", err)
	}
	defer logger.Close()

	if err := logger.LogEvent(Event{SessionID: "sess-1"}); err == nil {
		t.Error("LogEvent() should require event_type")
	}
	if err := logger.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
