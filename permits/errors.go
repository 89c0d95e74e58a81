// CLAUDE:SUMMARY Sentinel errors for the permits service: invalid payload, invalid input, not found.
package permits

import (
	"errors"

	"github.com/hazyhaar/permitwatch/permits/internal/store"
)

// ErrInvalidPayload is returned when an ingested payload is unusable
// (empty, or not a flat key-value bag).
var ErrInvalidPayload = errors.New("permits: invalid payload")

// ErrInvalidInput is returned when a request parameter fails validation.
var ErrInvalidInput = errors.New("permits: invalid input")

// ErrNotFound is returned when a permit lookup matches no row.
var ErrNotFound = errors.New("permits: not found")

// ErrStaleVersion is surfaced by the store when an optimistic update
// loses a version race. The pipeline recovers from it internally; it is
// exported for callers driving updates through the store directly.
var ErrStaleVersion = store.ErrStaleVersion
