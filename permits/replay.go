// CLAUDE:SUMMARY Event replay: reconstructs a permit's attribute state by applying diffs in order.
package permits

import (
	"encoding/json"
	"fmt"
)

// ReplayHistory applies every event's diff in order, starting from an
// empty record, and returns the reconstructed attribute state. Events
// must be ordered ascending by occurred_at (as ListEventsForEntity
// returns them). created and snapshot diffs carry full field sets with
// nil old values, so all three event types replay uniformly.
func ReplayHistory(events []*Event) (map[string]any, error) {
	state := make(map[string]any)
	for _, e := range events {
		var diff map[string]FieldChange
		if err := json.Unmarshal([]byte(e.DiffJSON), &diff); err != nil {
			return nil, fmt.Errorf("permits: replay event %s: %w", e.ID, err)
		}
		for field, change := range diff {
			state[field] = change.New
		}
	}
	return state, nil
}
