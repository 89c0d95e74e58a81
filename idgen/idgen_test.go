package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_Unique(t *testing.T) {
	// WHAT: Consecutive UUIDv7 IDs are distinct.
	// WHY: Raw records and events use these as primary keys.
	gen := UUIDv7()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate ID: %s", id)
		}
		seen[id] = true
	}
}

func TestPrefixed(t *testing.T) {
	// WHAT: Prefixed prepends the prefix to every generated ID.
	// WHY: Type-scoped IDs (raw_, evt_) make log lines self-describing.
	gen := Prefixed("evt_", Default)
	id := gen()
	if !strings.HasPrefix(id, "evt_") {
		t.Errorf("expected evt_ prefix, got %s", id)
	}
	if len(id) <= len("evt_") {
		t.Errorf("expected suffix after prefix, got %s", id)
	}
}

func TestParse_Invalid(t *testing.T) {
	// WHAT: Parse rejects non-UUID strings.
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("expected error for invalid UUID")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	// WHAT: Parse accepts IDs produced by the default generator.
	id := New()
	got, err := Parse(id)
	if err != nil {
		t.Fatalf("parse generated ID: %v", err)
	}
	if got != id {
		t.Errorf("parse changed ID: %s != %s", got, id)
	}
}
