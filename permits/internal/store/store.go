// Package store provides the data access layer for the permit pipeline.
//
// Three durable collections live here: raw scraped records, normalized
// permits, and the append-only event log. Every query is parameterized
// by org_id — no read or write path crosses tenant boundaries.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// querier is the subset of *sql.DB / *sql.Tx the store methods need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wraps a permit database. A Store bound to a transaction (via InTx)
// routes all queries through that transaction.
type Store struct {
	db *sql.DB
	tx *sql.Tx
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying database (migration helpers, tests).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) q() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// InTx runs fn inside a transaction. The Store passed to fn routes all
// queries through the transaction; commit on nil, rollback on error.
// Nested calls are not supported.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.tx != nil {
		return fmt.Errorf("store: nested transaction")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(&Store{db: s.db, tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is an SQLite unique-constraint
// failure. The fingerprint and natural-key unique indexes rely on this
// to turn concurrent duplicate inserts into "already ingested".
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsTransient reports whether err is a retryable store error (lock
// contention, interrupted connection). Records hit by transient errors
// stay in status 'new' and are picked up by the next pass.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "connection")
}
