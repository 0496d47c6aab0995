// Package analytics records quiz events (loads, submissions, failures).
package analytics

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

const dbTimeout = 5 * time.Second

// Event types emitted by quiz sessions.
const (
	EventQuizLoaded       = "quiz_loaded"
	EventAnswerSubmitted  = "answer_submitted"
	EventSubmissionFailed = "submission_failed"
)

// Event is one analytics record.
type Event struct {
	SessionID string
	UserID    string
	EventType string
	Data      map[string]any
	CreatedAt time.Time
}

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(Event) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(event Event) error {
	if err := checkEvent(event); err != nil {
		return err
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// UserKey derives a stable pseudonymous key for a chat user ID so raw
// platform identifiers never reach the events table.
func UserKey(userID string) string {
	if userID == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:16])
}

func checkEvent(event Event) error {
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	return nil
}
