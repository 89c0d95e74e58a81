// CLAUDE:SUMMARY Normalizer state machine: raw record → parse → insert-or-diff-update → event append, one transaction per record.
// Package pipeline turns raw scraped records into normalized permits
// and change events.
//
// Each raw record is processed inside its own transaction: the permit
// write, the event append and the raw status transition commit or roll
// back together, and one bad record never aborts the rest of a batch.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/permitwatch/permits/internal/normalize"
	"github.com/hazyhaar/permitwatch/permits/internal/store"
)

// Config configures a Normalizer.
type Config struct {
	// NewPermitID and NewEventID generate row IDs.
	NewPermitID func() string
	NewEventID  func() string
	// Source tags every emitted event with the producing stage.
	// Default: "normalizer".
	Source string
	// EntityFingerprint derives the normalized entity identity from the
	// org-scoped natural key.
	EntityFingerprint func(orgID, naturalKey string) string
	// MaxStaleRetries bounds the re-read-and-retry loop when a
	// concurrent pass wins the version race. Default: 3.
	MaxStaleRetries int
}

func (c *Config) defaults() {
	if c.Source == "" {
		c.Source = "normalizer"
	}
	if c.MaxStaleRetries <= 0 {
		c.MaxStaleRetries = 3
	}
}

// Summary is the externally visible outcome of one batch pass.
type Summary struct {
	Processed int `json:"processed"` // normalized: created or updated
	Skipped   int `json:"skipped"`   // unchanged payload, no event emitted
	Errored   int `json:"errored"`   // validation failure, marked error
	Retried   int `json:"retried"`   // stale-version or insert races retried
	Deferred  int `json:"deferred"`  // transient store error, left in 'new'
}

// Normalizer consumes raw records and applies them to the normalized store.
type Normalizer struct {
	store  *store.Store
	logger *slog.Logger
	cfg    Config
}

// New creates a Normalizer.
func New(st *store.Store, cfg Config, logger *slog.Logger) *Normalizer {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{store: st, logger: logger, cfg: cfg}
}

// ProcessBatch runs one bounded pass over raw records in the given
// status ("new" for the regular pass, "error" for operator-triggered
// reprocessing). Records are applied in scraped_at order so repeated
// sightings of one natural key land as separate, ordered events.
//
// Cancellation mid-batch is safe: every record commits independently,
// so the pass stops between records with no partial writes.
func (n *Normalizer) ProcessBatch(ctx context.Context, orgID, status string, limit int) (*Summary, error) {
	records, err := n.store.ListRawByStatus(ctx, orgID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list raw records: %w", err)
	}

	sum := &Summary{}
	for _, raw := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		n.processOne(ctx, orgID, raw, sum)
	}

	if len(records) > 0 {
		n.logger.Info("pipeline: batch complete", "org_id", orgID, "status", status,
			"processed", sum.Processed, "skipped", sum.Skipped,
			"errored", sum.Errored, "retried", sum.Retried, "deferred", sum.Deferred)
	}
	return sum, nil
}

// processOne applies a single raw record. Validation failures mark the
// record 'error'; transient store failures leave it untouched for the
// next pass; conflicts are retried locally.
func (n *Normalizer) processOne(ctx context.Context, orgID string, raw *store.RawRecord, sum *Summary) {
	log := n.logger.With("org_id", orgID, "raw_id", raw.ID)

	var payload map[string]string
	if err := json.Unmarshal([]byte(raw.PayloadJSON), &payload); err != nil {
		n.markError(ctx, orgID, raw, fmt.Sprintf("payload: invalid JSON: %v", err), sum, log)
		return
	}

	parsed, warnings, err := normalize.ParsePayload(payload)
	if err != nil {
		n.markError(ctx, orgID, raw, err.Error(), sum, log)
		return
	}

	for attempt := 0; ; attempt++ {
		outcome, err := n.applyParsed(ctx, orgID, raw, parsed, warnings)
		switch {
		case err == nil:
			if outcome == outcomeSkipped {
				sum.Skipped++
			} else {
				sum.Processed++
			}
			return
		case errors.Is(err, store.ErrStaleVersion) || store.IsUniqueViolation(err):
			// A concurrent pass touched the same natural key. Re-read and
			// recompute rather than overwrite.
			if attempt < n.cfg.MaxStaleRetries {
				sum.Retried++
				continue
			}
			log.Warn("pipeline: giving up after stale-version retries", "attempts", attempt)
			sum.Deferred++
			return
		case store.IsTransient(err):
			log.Warn("pipeline: transient store error, record stays new", "error", err)
			sum.Deferred++
			return
		default:
			log.Error("pipeline: record failed", "error", err)
			sum.Deferred++
			return
		}
	}
}

const (
	outcomeProcessed = "processed"
	outcomeSkipped   = "skipped"
)

// applyParsed runs the insert-or-update decision inside one transaction.
func (n *Normalizer) applyParsed(ctx context.Context, orgID string, raw *store.RawRecord,
	parsed *normalize.ParsedFields, warnings []string) (string, error) {

	naturalKey := parsed.NaturalKey()
	warningsJSON := marshalWarnings(warnings)

	outcome := outcomeProcessed
	err := n.store.InTx(ctx, func(tx *store.Store) error {
		existing, err := tx.GetPermitByNaturalKey(ctx, orgID, naturalKey)
		if err != nil {
			return err
		}

		if existing == nil {
			p := &store.Permit{
				ID:          n.cfg.NewPermitID(),
				OrgID:       orgID,
				Fingerprint: n.cfg.EntityFingerprint(orgID, naturalKey),
				NaturalKey:  naturalKey,
				Version:     1,
				RawRef:      raw.ID,
			}
			applyFields(p, parsed)
			if err := tx.InsertPermit(ctx, p); err != nil {
				return err
			}
			if err := tx.AppendEvent(ctx, &store.Event{
				ID:           n.cfg.NewEventID(),
				OrgID:        orgID,
				EntityID:     p.ID,
				EventType:    store.EventCreated,
				DiffJSON:     MarshalDiff(Snapshot(p)),
				WarningsJSON: warningsJSON,
				Source:       n.cfg.Source,
			}); err != nil {
				return err
			}
			return tx.MarkRawProcessed(ctx, orgID, raw.ID, p.ID)
		}

		diff := applyFields(existing, parsed)
		if len(diff) == 0 {
			// Idempotent re-ingestion of unchanged data: no permit write,
			// no event, version stays put.
			outcome = outcomeSkipped
			return tx.MarkRawProcessed(ctx, orgID, raw.ID, existing.ID)
		}

		existing.RawRef = raw.ID
		if err := tx.UpdatePermit(ctx, existing, existing.Version); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &store.Event{
			ID:           n.cfg.NewEventID(),
			OrgID:        orgID,
			EntityID:     existing.ID,
			EventType:    store.EventUpdated,
			DiffJSON:     MarshalDiff(diff),
			WarningsJSON: warningsJSON,
			Source:       n.cfg.Source,
		}); err != nil {
			return err
		}
		return tx.MarkRawProcessed(ctx, orgID, raw.ID, existing.ID)
	})
	return outcome, err
}

func (n *Normalizer) markError(ctx context.Context, orgID string, raw *store.RawRecord,
	detail string, sum *Summary, log *slog.Logger) {
	if err := n.store.MarkRawError(ctx, orgID, raw.ID, detail); err != nil {
		// Could not even record the failure — leave the record 'new' and
		// let the next pass retry.
		log.Warn("pipeline: mark error failed", "error", err)
		sum.Deferred++
		return
	}
	log.Info("pipeline: record rejected", "detail", detail)
	sum.Errored++
}

func marshalWarnings(warnings []string) string {
	if len(warnings) == 0 {
		return "[]"
	}
	b, err := json.Marshal(warnings)
	if err != nil {
		return "[]"
	}
	return string(b)
}
