// CLAUDE:SUMMARY Append-only event log: append, per-entity history, activity feed, backfill helper.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AppendEvent inserts one event. No update or delete is ever exposed.
// Callers that pair an event with a permit write must do both inside
// InTx so the two commit or roll back together.
func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	if e.OccurredAt == 0 {
		e.OccurredAt = time.Now().UnixMilli()
	}
	if e.EntityType == "" {
		e.EntityType = EntityTypePermit
	}
	if e.DiffJSON == "" {
		e.DiffJSON = "{}"
	}
	if e.WarningsJSON == "" {
		e.WarningsJSON = "[]"
	}
	_, err := s.q().ExecContext(ctx,
		`INSERT INTO permit_events (id, org_id, entity_type, entity_id, event_type,
		diff_json, warnings_json, source, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrgID, e.EntityType, e.EntityID, e.EventType,
		e.DiffJSON, e.WarningsJSON, e.Source, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListEventsForEntity returns all events for one entity, oldest first.
// Replaying the diffs in this order reconstructs the entity's history.
func (s *Store) ListEventsForEntity(ctx context.Context, orgID, entityID string) ([]*Event, error) {
	rows, err := s.q().QueryContext(ctx,
		`SELECT id, org_id, entity_type, entity_id, event_type, diff_json,
		warnings_json, source, occurred_at
		FROM permit_events WHERE org_id = ? AND entity_id = ?
		ORDER BY occurred_at ASC, id ASC`, orgID, entityID)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// ListEventsByTime returns events in an occurred_at range, newest first.
// Used for org activity feeds. from/to of 0 mean unbounded.
func (s *Store) ListEventsByTime(ctx context.Context, orgID string, from, to int64, limit int) ([]*Event, error) {
	query := `SELECT id, org_id, entity_type, entity_id, event_type, diff_json,
		warnings_json, source, occurred_at
		FROM permit_events WHERE org_id = ?`
	args := []any{orgID}

	if from > 0 {
		query += ` AND occurred_at >= ?`
		args = append(args, from)
	}
	if to > 0 {
		query += ` AND occurred_at <= ?`
		args = append(args, to)
	}
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY occurred_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectEvents(rows)
}

// CountEvents returns the number of events in an org.
func (s *Store) CountEvents(ctx context.Context, orgID string) (int, error) {
	var count int
	err := s.q().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM permit_events WHERE org_id = ?`, orgID).Scan(&count)
	return count, err
}

// ListPermitIDsWithoutEvents returns permits that predate the event log.
// Used by snapshot backfill to seed one snapshot event per legacy row.
func (s *Store) ListPermitIDsWithoutEvents(ctx context.Context, orgID string) ([]string, error) {
	rows, err := s.q().QueryContext(ctx,
		`SELECT p.id FROM permits p
		WHERE p.org_id = ?
		  AND NOT EXISTS (
		    SELECT 1 FROM permit_events e WHERE e.org_id = p.org_id AND e.entity_id = p.id
		  )`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectEvents(rows *sql.Rows) ([]*Event, error) {
	defer rows.Close()
	var result []*Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.OrgID, &e.EntityType, &e.EntityID, &e.EventType,
			&e.DiffJSON, &e.WarningsJSON, &e.Source, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
