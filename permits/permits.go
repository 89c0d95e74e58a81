// CLAUDE:SUMMARY Main Service orchestrator: raw ingestion, normalization passes, snapshot backfill, org-scoped reads, scheduler.
package permits

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/permitwatch/audit"
	"github.com/hazyhaar/permitwatch/dbopen"
	"github.com/hazyhaar/permitwatch/idgen"
	"github.com/hazyhaar/permitwatch/permits/internal/normalize"
	"github.com/hazyhaar/permitwatch/permits/internal/pipeline"
	"github.com/hazyhaar/permitwatch/permits/internal/scheduler"
	"github.com/hazyhaar/permitwatch/permits/internal/store"
)

// Service is the main permit pipeline orchestrator. Each stage receives
// its store handle explicitly — there is no process-wide connection.
type Service struct {
	store      *store.Store
	normalizer *pipeline.Normalizer
	scheduler  *scheduler.Scheduler
	logger     *slog.Logger
	config     *Config
	newRawID   idgen.Generator
	newEventID idgen.Generator
	audit      audit.Logger          // optional — audit trail
	orgs       scheduler.OrgLister   // orgs visited by scheduled passes
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithAudit sets the audit logger for data-modifying operations.
func WithAudit(a audit.Logger) ServiceOption {
	return func(svc *Service) { svc.audit = a }
}

// WithOrgLister overrides which orgs the scheduler visits. The default
// lists orgs that have unprocessed raw records.
func WithOrgLister(list scheduler.OrgLister) ServiceOption {
	return func(svc *Service) { svc.orgs = list }
}

// New creates a permits Service on an already-opened database.
// The schema must be applied first (ApplySchema or OpenDB).
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("permits: nil database")
	}
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	st := store.NewStore(db)
	svc := &Service{
		store:      st,
		logger:     logger,
		config:     cfg,
		newRawID:   idgen.Prefixed("raw_", idgen.Default),
		newEventID: idgen.Prefixed("evt_", idgen.Default),
	}

	svc.normalizer = pipeline.New(st, pipeline.Config{
		NewPermitID:       idgen.Prefixed("pmt_", idgen.Default),
		NewEventID:        svc.newEventID,
		Source:            cfg.EventSource,
		EntityFingerprint: normalize.EntityFingerprint,
		MaxStaleRetries:   cfg.MaxStaleRetries,
	}, logger)

	for _, opt := range opts {
		opt(svc)
	}

	if svc.orgs == nil {
		svc.orgs = func(ctx context.Context) ([]string, error) {
			return st.ListOrgsWithPending(ctx)
		}
	}

	pass := func(ctx context.Context, orgID string, limit int) error {
		_, err := svc.ProcessNew(ctx, orgID, limit)
		return err
	}
	svc.scheduler = scheduler.New(svc.orgs, pass, scheduler.Config{
		CheckInterval: cfg.checkInterval(),
		BatchSize:     cfg.BatchSize,
	}, logger)

	return svc, nil
}

// OpenDB opens the service database at cfg.DBPath and applies the schema.
func OpenDB(cfg *Config) (*sql.DB, error) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	cfg.defaults()
	db, err := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		return nil, err
	}
	if err := ApplySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("permits: apply schema: %w", err)
	}
	return db, nil
}

// ApplySchema applies the permit pipeline schema to a database.
func ApplySchema(db *sql.DB) error {
	return store.ApplySchema(db)
}

// Start launches the background scheduler. Non-blocking.
func (svc *Service) Start(ctx context.Context) {
	go svc.scheduler.Run(ctx)
	svc.logger.Info("permits: started")
}

// Close shuts down the service.
func (svc *Service) Close() error {
	svc.logger.Info("permits: closed")
	return nil
}

// orgOrDefault stamps the sentinel org for single-tenant callers. The
// org always comes from the caller's context, never from payload content.
func orgOrDefault(orgID string) string {
	if orgID == "" {
		return DefaultOrgID
	}
	return orgID
}

// --- Ingestion ---

// IngestRaw stores one scraped payload. Returns the raw record's ID and
// whether it was new: a payload whose fingerprint was already ingested
// for this org returns the existing ID with isNew=false and writes
// nothing. This is the producer-facing entry point for the scraper.
func (svc *Service) IngestRaw(ctx context.Context, orgID string, payload map[string]string, sourceURL string) (string, bool, error) {
	if len(payload) == 0 {
		return "", false, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	orgID = orgOrDefault(orgID)

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	rec := &store.RawRecord{
		ID:          svc.newRawID(),
		OrgID:       orgID,
		Fingerprint: normalize.Fingerprint(payload),
		SourceURL:   sourceURL,
		PayloadJSON: string(payloadJSON),
	}
	rawID, isNew, err := svc.store.InsertRawIfNew(ctx, rec)
	if err != nil {
		return "", false, err
	}
	if isNew {
		svc.auditLog(orgID, "ingest_raw",
			fmt.Sprintf(`{"raw_id":%q,"fingerprint":%q,"source_url":%q}`, rawID, rec.Fingerprint, sourceURL))
	}
	return rawID, isNew, nil
}

// --- Normalization passes ---

// ProcessNew runs one bounded normalization pass over unprocessed raw
// records. The returned summary is the only externally visible outcome;
// individual failures land on the raw rows as status 'error'.
func (svc *Service) ProcessNew(ctx context.Context, orgID string, limit int) (*BatchSummary, error) {
	orgID = orgOrDefault(orgID)
	if limit <= 0 {
		limit = svc.config.BatchSize
	}
	sum, err := svc.normalizer.ProcessBatch(ctx, orgID, store.RawStatusNew, limit)
	if err != nil {
		return sum, err
	}
	svc.auditLog(orgID, "process_new", marshalSummary(sum))
	return sum, nil
}

// ProcessErrored re-runs normalization over records previously marked
// 'error'. Operator-triggered; nothing retries these automatically.
func (svc *Service) ProcessErrored(ctx context.Context, orgID string, limit int) (*BatchSummary, error) {
	orgID = orgOrDefault(orgID)
	if limit <= 0 {
		limit = svc.config.BatchSize
	}
	sum, err := svc.normalizer.ProcessBatch(ctx, orgID, store.RawStatusError, limit)
	if err != nil {
		return sum, err
	}
	svc.auditLog(orgID, "process_errored", marshalSummary(sum))
	return sum, nil
}

// BackfillSnapshots emits a one-time snapshot event for every permit
// that predates the event log, seeding replayable history. Permits that
// already have events are never touched, so the backfill is idempotent.
func (svc *Service) BackfillSnapshots(ctx context.Context, orgID string) (int, error) {
	orgID = orgOrDefault(orgID)
	ids, err := svc.store.ListPermitIDsWithoutEvents(ctx, orgID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		err := svc.store.InTx(ctx, func(tx *store.Store) error {
			p, err := tx.GetPermit(ctx, orgID, id)
			if err != nil {
				return err
			}
			if p == nil {
				return nil
			}
			return tx.AppendEvent(ctx, &store.Event{
				ID:        svc.newEventID(),
				OrgID:     orgID,
				EntityID:  p.ID,
				EventType: store.EventSnapshot,
				DiffJSON:  pipeline.MarshalDiff(pipeline.Snapshot(p)),
				Source:    "backfill",
			})
		})
		if err != nil {
			return count, fmt.Errorf("backfill %s: %w", id, err)
		}
		count++
	}

	if count > 0 {
		svc.auditLog(orgID, "backfill_snapshots", fmt.Sprintf(`{"events":%d}`, count))
		svc.logger.Info("permits: snapshot backfill complete", "org_id", orgID, "events", count)
	}
	return count, nil
}

// --- Read operations ---

// GetPermit returns a permit by ID, or ErrNotFound.
func (svc *Service) GetPermit(ctx context.Context, orgID, permitID string) (*Permit, error) {
	p, err := svc.store.GetPermit(ctx, orgOrDefault(orgID), permitID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: permit %s", ErrNotFound, permitID)
	}
	return p, nil
}

// GetPermitByStatusNo returns the permit filed under a status/tracking
// number, or ErrNotFound.
func (svc *Service) GetPermitByStatusNo(ctx context.Context, orgID, statusNo string) (*Permit, error) {
	if statusNo == "" {
		return nil, fmt.Errorf("%w: empty status number", ErrInvalidInput)
	}
	p, err := svc.store.GetPermitByNaturalKey(ctx, orgOrDefault(orgID), "s:"+statusNo)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: status_no %s", ErrNotFound, statusNo)
	}
	return p, nil
}

// ListPermits returns permits for an org, optionally filtered by
// county, district, operator and filing date range.
func (svc *Service) ListPermits(ctx context.Context, orgID string, f PermitFilter) ([]*Permit, error) {
	return svc.store.ListPermits(ctx, orgOrDefault(orgID), f)
}

// EventsForPermit returns a permit's full event history, oldest first.
func (svc *Service) EventsForPermit(ctx context.Context, orgID, permitID string) ([]*Event, error) {
	return svc.store.ListEventsForEntity(ctx, orgOrDefault(orgID), permitID)
}

// ActivityFeed returns org events in an occurred_at range, newest
// first. from/to of 0 mean unbounded.
func (svc *Service) ActivityFeed(ctx context.Context, orgID string, from, to int64, limit int) ([]*Event, error) {
	return svc.store.ListEventsByTime(ctx, orgOrDefault(orgID), from, to, limit)
}

// ListRawErrors returns raw records stuck in status 'error' for manual
// inspection, oldest first.
func (svc *Service) ListRawErrors(ctx context.Context, orgID string, limit int) ([]*RawRecord, error) {
	return svc.store.ListRawByStatus(ctx, orgOrDefault(orgID), store.RawStatusError, limit)
}

// Stats returns aggregate counters for an org.
func (svc *Service) Stats(ctx context.Context, orgID string) (*OrgStats, error) {
	orgID = orgOrDefault(orgID)

	permitCount, err := svc.store.CountPermits(ctx, orgID)
	if err != nil {
		return nil, err
	}
	eventCount, err := svc.store.CountEvents(ctx, orgID)
	if err != nil {
		return nil, err
	}
	rawCounts, err := svc.store.CountRawByStatus(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return &OrgStats{
		Permits:      permitCount,
		Events:       eventCount,
		RawNew:       rawCounts[store.RawStatusNew],
		RawProcessed: rawCounts[store.RawStatusProcessed],
		RawError:     rawCounts[store.RawStatusError],
	}, nil
}

// ReplayPermit reconstructs a permit's attribute state from its event
// history. Used for audits: the result must match the stored row.
func (svc *Service) ReplayPermit(ctx context.Context, orgID, permitID string) (map[string]any, error) {
	events, err := svc.EventsForPermit(ctx, orgID, permitID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: no events for permit %s", ErrNotFound, permitID)
	}
	return ReplayHistory(events)
}

// --- Internal ---

// auditLog emits an async audit entry if an audit logger is configured.
func (svc *Service) auditLog(orgID, action, params string) {
	if svc.audit == nil {
		return
	}
	svc.audit.LogAsync(&audit.Entry{
		OrgID:      orgID,
		Action:     action,
		Parameters: params,
	})
}

func marshalSummary(sum *BatchSummary) string {
	b, err := json.Marshal(sum)
	if err != nil {
		return "{}"
	}
	return string(b)
}
