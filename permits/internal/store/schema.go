// CLAUDE:SUMMARY Authoritative permit pipeline schema: permits_raw, permits, permit_events.
package store

import "database/sql"

// Schema is the single authoritative schema for the permit pipeline.
// Timestamps are Unix milliseconds. Dates are ISO strings (YYYY-MM-DD).
const Schema = `
-- Raw scraped records, append-only
CREATE TABLE IF NOT EXISTS permits_raw (
    id            TEXT PRIMARY KEY,
    org_id        TEXT NOT NULL,
    fingerprint   TEXT NOT NULL,
    source_url    TEXT NOT NULL DEFAULT '',
    payload_json  TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'new',
    error_detail  TEXT NOT NULL DEFAULT '',
    permit_id     TEXT NOT NULL DEFAULT '',
    scraped_at    INTEGER NOT NULL,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_permits_raw_fingerprint ON permits_raw(org_id, fingerprint);
CREATE INDEX IF NOT EXISTS idx_permits_raw_status ON permits_raw(org_id, status, scraped_at);

-- Normalized permits
CREATE TABLE IF NOT EXISTS permits (
    id              TEXT PRIMARY KEY,
    org_id          TEXT NOT NULL,
    fingerprint     TEXT NOT NULL,
    natural_key     TEXT NOT NULL,
    status_no       TEXT NOT NULL DEFAULT '',
    api_no          TEXT NOT NULL DEFAULT '',
    operator_name   TEXT NOT NULL DEFAULT '',
    operator_number TEXT NOT NULL DEFAULT '',
    lease_name      TEXT NOT NULL DEFAULT '',
    lease_no        TEXT NOT NULL DEFAULT '',
    well_no         TEXT NOT NULL DEFAULT '',
    county          TEXT NOT NULL DEFAULT '',
    district        TEXT NOT NULL DEFAULT '',
    field_name      TEXT NOT NULL DEFAULT '',
    filing_date     TEXT NOT NULL DEFAULT '',
    status_date     TEXT NOT NULL DEFAULT '',
    latitude        REAL,
    longitude       REAL,
    total_depth     REAL,
    acres           REAL,
    well_count      INTEGER,
    version         INTEGER NOT NULL DEFAULT 1,
    raw_ref         TEXT NOT NULL DEFAULT '',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_permits_natural_key ON permits(org_id, natural_key);
CREATE UNIQUE INDEX IF NOT EXISTS idx_permits_fingerprint ON permits(org_id, fingerprint);
CREATE INDEX IF NOT EXISTS idx_permits_county ON permits(org_id, county);
CREATE INDEX IF NOT EXISTS idx_permits_district ON permits(org_id, district);
CREATE INDEX IF NOT EXISTS idx_permits_operator ON permits(org_id, operator_name);
CREATE INDEX IF NOT EXISTS idx_permits_filing_date ON permits(org_id, filing_date);

-- Change events, append-only
CREATE TABLE IF NOT EXISTS permit_events (
    id            TEXT PRIMARY KEY,
    org_id        TEXT NOT NULL,
    entity_type   TEXT NOT NULL DEFAULT 'permit',
    entity_id     TEXT NOT NULL REFERENCES permits(id),
    event_type    TEXT NOT NULL,
    diff_json     TEXT NOT NULL DEFAULT '{}',
    warnings_json TEXT NOT NULL DEFAULT '[]',
    source        TEXT NOT NULL DEFAULT 'normalizer',
    occurred_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_permit_events_entity ON permit_events(org_id, entity_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_permit_events_time ON permit_events(org_id, occurred_at DESC);
`

// migrations is the ordered list of DDL applied after Schema. Each
// entry must be idempotent (IF NOT EXISTS) since the full list runs on
// every startup.
var migrations = []string{}

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}
