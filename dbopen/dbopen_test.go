package dbopen

import (
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpen_AppliesPragmas(t *testing.T) {
	// WHAT: Open applies foreign_keys and busy_timeout pragmas.
	// WHY: The ingestion pipeline depends on FK cascades and lock tolerance.
	db := OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	var timeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatal(err)
	}
	if timeout != 10_000 {
		t.Errorf("busy_timeout = %d, want 10000", timeout)
	}
}

func TestOpen_WithSchema(t *testing.T) {
	// WHAT: WithSchema executes queued DDL after pragmas.
	db := OpenMemory(t, WithSchema(`CREATE TABLE x (id TEXT PRIMARY KEY)`))

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='x'`).Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Error("schema table not created")
	}
}

func TestOpen_WithMkdirAll(t *testing.T) {
	// WHAT: WithMkdirAll creates missing parent directories.
	path := filepath.Join(t.TempDir(), "nested", "dir", "permits.db")
	db, err := Open(path, WithMkdirAll())
	if err != nil {
		t.Fatalf("open with mkdir: %v", err)
	}
	db.Close()
}

func TestOpen_BadSchema_ClosesDB(t *testing.T) {
	// WHAT: Invalid schema SQL fails the open.
	if _, err := Open(":memory:", WithSchema("NOT SQL")); err == nil {
		t.Error("expected error for invalid schema")
	}
}
