package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS quiz_events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    user_key   TEXT NOT NULL DEFAULT '',
    event_type TEXT NOT NULL,
    data       TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL
);
`

// SQLiteEventLogger writes events to a local SQLite file. Used when no
// PostgreSQL database is configured.
type SQLiteEventLogger struct {
	db *sql.DB
}

// NewSQLiteEventLogger opens (or creates) the database at path.
func NewSQLiteEventLogger(path string) (*SQLiteEventLogger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// database/sql pools connections; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create quiz_events: %w", err)
	}
	return &SQLiteEventLogger{db: db}, nil
}

func (l *SQLiteEventLogger) LogEvent(event Event) error {
	if err := checkEvent(event); err != nil {
		return err
	}
	data, err := marshalData(event.Data)
	if err != nil {
		return err
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := l.db.ExecContext(ctx,
		`INSERT INTO quiz_events (session_id, user_key, event_type, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.SessionID, UserKey(event.UserID), event.EventType, string(data), createdAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// CountEvents returns how many events of the given type a session produced.
func (l *SQLiteEventLogger) CountEvents(ctx context.Context, sessionID, eventType string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT count(*) FROM quiz_events WHERE session_id = ? AND event_type = ?`,
		sessionID, eventType,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// HealthCheck verifies the database file is usable.
func (l *SQLiteEventLogger) HealthCheck(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *SQLiteEventLogger) Close() error {
	return l.db.Close()
}
