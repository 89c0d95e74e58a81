// CLAUDE:SUMMARY Raw ingest store: insert-if-new upsert on fingerprint, status transitions, backlog listing.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertRawIfNew inserts a raw record unless its fingerprint already
// exists for the org. On conflict the existing row's ID is returned with
// isNew=false and nothing is written — a re-scrape of the same filing is
// a no-op. The unique index is the sole dedup guard under concurrency:
// of two simultaneous inserts exactly one wins, the loser observes the
// conflict and reads the winner's row.
func (s *Store) InsertRawIfNew(ctx context.Context, r *RawRecord) (string, bool, error) {
	now := time.Now().UnixMilli()
	if r.ScrapedAt == 0 {
		r.ScrapedAt = now
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = now
	}
	if r.UpdatedAt == 0 {
		r.UpdatedAt = now
	}
	if r.Status == "" {
		r.Status = RawStatusNew
	}

	_, err := s.q().ExecContext(ctx,
		`INSERT INTO permits_raw (id, org_id, fingerprint, source_url, payload_json,
		status, error_detail, permit_id, scraped_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrgID, r.Fingerprint, r.SourceURL, r.PayloadJSON,
		r.Status, r.ErrorDetail, r.PermitID, r.ScrapedAt, r.CreatedAt, r.UpdatedAt,
	)
	if err == nil {
		return r.ID, true, nil
	}
	if !IsUniqueViolation(err) {
		return "", false, fmt.Errorf("insert raw: %w", err)
	}

	var existingID string
	err = s.q().QueryRowContext(ctx,
		`SELECT id FROM permits_raw WHERE org_id = ? AND fingerprint = ?`,
		r.OrgID, r.Fingerprint).Scan(&existingID)
	if err != nil {
		return "", false, fmt.Errorf("lookup raw after conflict: %w", err)
	}
	return existingID, false, nil
}

// GetRaw retrieves a raw record by ID within an org.
func (s *Store) GetRaw(ctx context.Context, orgID, id string) (*RawRecord, error) {
	row := s.q().QueryRowContext(ctx,
		`SELECT id, org_id, fingerprint, source_url, payload_json, status,
		error_detail, permit_id, scraped_at, created_at, updated_at
		FROM permits_raw WHERE org_id = ? AND id = ?`, orgID, id)
	return scanRaw(row.Scan)
}

// ListRawByStatus returns raw records in the given status, oldest scrape
// first so a batch applies updates for one natural key in scrape order.
func (s *Store) ListRawByStatus(ctx context.Context, orgID, status string, limit int) ([]*RawRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q().QueryContext(ctx,
		`SELECT id, org_id, fingerprint, source_url, payload_json, status,
		error_detail, permit_id, scraped_at, created_at, updated_at
		FROM permits_raw WHERE org_id = ? AND status = ?
		ORDER BY scraped_at ASC, id ASC LIMIT ?`, orgID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*RawRecord
	for rows.Next() {
		r, err := scanRaw(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// MarkRawProcessed transitions a raw record to processed and records the
// permit it produced or updated.
func (s *Store) MarkRawProcessed(ctx context.Context, orgID, id, permitID string) error {
	now := time.Now().UnixMilli()
	_, err := s.q().ExecContext(ctx,
		`UPDATE permits_raw SET status = ?, error_detail = '', permit_id = ?, updated_at = ?
		WHERE org_id = ? AND id = ?`, RawStatusProcessed, permitID, now, orgID, id)
	return err
}

// MarkRawError transitions a raw record to error with a human-readable
// reason. The row is never deleted — errored records stay inspectable
// and reprocessable.
func (s *Store) MarkRawError(ctx context.Context, orgID, id, detail string) error {
	now := time.Now().UnixMilli()
	_, err := s.q().ExecContext(ctx,
		`UPDATE permits_raw SET status = ?, error_detail = ?, updated_at = ?
		WHERE org_id = ? AND id = ?`, RawStatusError, detail, now, orgID, id)
	return err
}

// CountRawByStatus returns per-status raw record counts for an org.
func (s *Store) CountRawByStatus(ctx context.Context, orgID string) (map[string]int, error) {
	rows, err := s.q().QueryContext(ctx,
		`SELECT status, COUNT(*) FROM permits_raw WHERE org_id = ? GROUP BY status`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ListOrgsWithPending returns org IDs that have unprocessed raw
// records. Drives the scheduler's pass fan-out.
func (s *Store) ListOrgsWithPending(ctx context.Context) ([]string, error) {
	rows, err := s.q().QueryContext(ctx,
		`SELECT DISTINCT org_id FROM permits_raw WHERE status = ?`, RawStatusNew)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []string
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func scanRaw(scan func(dest ...any) error) (*RawRecord, error) {
	var r RawRecord
	err := scan(
		&r.ID, &r.OrgID, &r.Fingerprint, &r.SourceURL, &r.PayloadJSON, &r.Status,
		&r.ErrorDetail, &r.PermitID, &r.ScrapedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan raw record: %w", err)
	}
	return &r, nil
}
