// CLAUDE:SUMMARY Normalized permit access: insert, optimistic-version update, natural-key lookup, filtered listing.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrStaleVersion is returned by UpdatePermit when the row's version no
// longer matches the expected one. The caller must re-read, recompute
// the diff and retry rather than overwrite concurrent work.
var ErrStaleVersion = errors.New("store: stale permit version")

const permitColumns = `id, org_id, fingerprint, natural_key, status_no, api_no,
	operator_name, operator_number, lease_name, lease_no, well_no,
	county, district, field_name, filing_date, status_date,
	latitude, longitude, total_depth, acres, well_count,
	version, raw_ref, created_at, updated_at`

// InsertPermit adds a new normalized permit with version 1.
func (s *Store) InsertPermit(ctx context.Context, p *Permit) error {
	now := time.Now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	if p.UpdatedAt == 0 {
		p.UpdatedAt = now
	}
	if p.Version == 0 {
		p.Version = 1
	}

	_, err := s.q().ExecContext(ctx,
		`INSERT INTO permits (`+permitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, p.Fingerprint, p.NaturalKey, p.StatusNo, p.APINo,
		p.OperatorName, p.OperatorNumber, p.LeaseName, p.LeaseNo, p.WellNo,
		p.County, p.District, p.FieldName, p.FilingDate, p.StatusDate,
		p.Latitude, p.Longitude, p.TotalDepth, p.Acres, p.WellCount,
		p.Version, p.RawRef, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// UpdatePermit applies a permit's current field values, guarded by an
// optimistic check on expectVersion. On success the stored version is
// expectVersion+1 and p.Version is updated to match.
func (s *Store) UpdatePermit(ctx context.Context, p *Permit, expectVersion int64) error {
	now := time.Now().UnixMilli()
	res, err := s.q().ExecContext(ctx,
		`UPDATE permits SET status_no=?, api_no=?, operator_name=?, operator_number=?,
		lease_name=?, lease_no=?, well_no=?, county=?, district=?, field_name=?,
		filing_date=?, status_date=?, latitude=?, longitude=?, total_depth=?,
		acres=?, well_count=?, version=version+1, raw_ref=?, updated_at=?
		WHERE org_id=? AND id=? AND version=?`,
		p.StatusNo, p.APINo, p.OperatorName, p.OperatorNumber,
		p.LeaseName, p.LeaseNo, p.WellNo, p.County, p.District, p.FieldName,
		p.FilingDate, p.StatusDate, p.Latitude, p.Longitude, p.TotalDepth,
		p.Acres, p.WellCount, p.RawRef, now,
		p.OrgID, p.ID, expectVersion,
	)
	if err != nil {
		return fmt.Errorf("update permit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update permit: rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleVersion
	}
	p.Version = expectVersion + 1
	p.UpdatedAt = now
	return nil
}

// GetPermit retrieves a permit by ID within an org.
func (s *Store) GetPermit(ctx context.Context, orgID, id string) (*Permit, error) {
	row := s.q().QueryRowContext(ctx,
		`SELECT `+permitColumns+` FROM permits WHERE org_id = ? AND id = ?`, orgID, id)
	return scanPermit(row.Scan)
}

// GetPermitByNaturalKey retrieves a permit by its org-scoped natural key.
func (s *Store) GetPermitByNaturalKey(ctx context.Context, orgID, naturalKey string) (*Permit, error) {
	row := s.q().QueryRowContext(ctx,
		`SELECT `+permitColumns+` FROM permits WHERE org_id = ? AND natural_key = ?`,
		orgID, naturalKey)
	return scanPermit(row.Scan)
}

// ListPermits returns permits for an org, optionally filtered, most
// recently filed first.
func (s *Store) ListPermits(ctx context.Context, orgID string, f PermitFilter) ([]*Permit, error) {
	query := `SELECT ` + permitColumns + ` FROM permits WHERE org_id = ?`
	args := []any{orgID}

	if f.County != "" {
		query += ` AND county = ?`
		args = append(args, f.County)
	}
	if f.District != "" {
		query += ` AND district = ?`
		args = append(args, f.District)
	}
	if f.OperatorName != "" {
		query += ` AND operator_name = ?`
		args = append(args, f.OperatorName)
	}
	if f.FiledFrom != "" {
		query += ` AND filing_date >= ?`
		args = append(args, f.FiledFrom)
	}
	if f.FiledTo != "" {
		query += ` AND filing_date <= ?`
		args = append(args, f.FiledTo)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY filing_date DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Permit
	for rows.Next() {
		p, err := scanPermit(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// CountPermits returns the number of permits in an org.
func (s *Store) CountPermits(ctx context.Context, orgID string) (int, error) {
	var count int
	err := s.q().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM permits WHERE org_id = ?`, orgID).Scan(&count)
	return count, err
}

func scanPermit(scan func(dest ...any) error) (*Permit, error) {
	var p Permit
	err := scan(
		&p.ID, &p.OrgID, &p.Fingerprint, &p.NaturalKey, &p.StatusNo, &p.APINo,
		&p.OperatorName, &p.OperatorNumber, &p.LeaseName, &p.LeaseNo, &p.WellNo,
		&p.County, &p.District, &p.FieldName, &p.FilingDate, &p.StatusDate,
		&p.Latitude, &p.Longitude, &p.TotalDepth, &p.Acres, &p.WellCount,
		&p.Version, &p.RawRef, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan permit: %w", err)
	}
	return &p, nil
}
