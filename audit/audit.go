// Package audit provides an SQLite-backed audit trail for data-modifying
// operations. Writes are buffered and flushed by a background goroutine so
// a slow audit store never blocks the ingestion path.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/permitwatch/idgen"
)

// Entry is one audited operation.
type Entry struct {
	EntryID    string `json:"entry_id"`
	Timestamp  int64  `json:"timestamp"` // unix millis
	OrgID      string `json:"org_id"`
	Action     string `json:"action"`
	Parameters string `json:"parameters"` // JSON
	Status     string `json:"status"`     // "success" | "error"
	Error      string `json:"error,omitempty"`
}

// Logger records audit entries.
type Logger interface {
	Log(ctx context.Context, e *Entry) error
	LogAsync(e *Entry)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    entry_id      TEXT PRIMARY KEY,
    timestamp     INTEGER NOT NULL,
    org_id        TEXT NOT NULL DEFAULT '',
    action        TEXT NOT NULL,
    parameters    TEXT NOT NULL DEFAULT '{}',
    status        TEXT NOT NULL DEFAULT 'success',
    error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_log_time ON audit_log(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_log_org ON audit_log(org_id, timestamp DESC);
`

// SQLiteLogger writes audit entries to an SQLite database.
type SQLiteLogger struct {
	db    *sql.DB
	newID idgen.Generator

	buf     chan *Entry
	done    chan struct{}
	closing sync.Once
}

// Option configures an SQLiteLogger.
type Option func(*SQLiteLogger)

// WithIDGenerator sets a custom ID generator for entry IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.newID = gen }
}

// NewSQLiteLogger creates a logger backed by the given database.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:    db,
		newID: idgen.Prefixed("aud_", idgen.Default),
		buf:   make(chan *Entry, 256),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.drain()
	return l
}

// Init creates the audit_log table.
func (l *SQLiteLogger) Init() error {
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// Log writes an entry synchronously, filling defaults first.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (entry_id, timestamp, org_id, action, parameters, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.Timestamp, e.OrgID, e.Action, e.Parameters, e.Status, e.Error)
	if err != nil {
		return fmt.Errorf("audit: log: %w", err)
	}
	return nil
}

// LogAsync queues an entry for background persistence. Non-blocking:
// if the buffer is full the entry is dropped with a warning.
func (l *SQLiteLogger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	select {
	case l.buf <- e:
	default:
		slog.Warn("audit: buffer full, entry dropped", "action", e.Action)
	}
}

// Close flushes buffered entries and stops the background writer.
func (l *SQLiteLogger) Close() error {
	l.closing.Do(func() {
		close(l.buf)
		<-l.done
	})
	return nil
}

func (l *SQLiteLogger) drain() {
	defer close(l.done)
	for e := range l.buf {
		if err := l.Log(context.Background(), e); err != nil {
			slog.Error("audit: async write failed", "action", e.Action, "error", err)
		}
	}
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Parameters == "" {
		e.Parameters = "{}"
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}
