package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/permitwatch/dbopen"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return NewStore(db)
}

func testRaw(org, fingerprint string, scrapedAt int64) *RawRecord {
	return &RawRecord{
		ID:          "raw_" + fingerprint,
		OrgID:       org,
		Fingerprint: fingerprint,
		SourceURL:   "https://rrc.example/w1/" + fingerprint,
		PayloadJSON: `{"status_no":"906213"}`,
		ScrapedAt:   scrapedAt,
	}
}

func testPermit(org, id, naturalKey string) *Permit {
	return &Permit{
		ID:          id,
		OrgID:       org,
		Fingerprint: "fp_" + id,
		NaturalKey:  naturalKey,
		StatusNo:    "906213",
		County:      "REEVES",
		Version:     1,
	}
}

func TestInsertRawIfNew_Idempotent(t *testing.T) {
	// WHAT: Inserting the same fingerprint twice writes one row; the
	// second call returns the first row's ID with isNew=false.
	// WHY: The unique constraint is the sole dedup guard against
	// concurrent duplicate scrapes.
	st := setupTestStore(t)
	ctx := context.Background()

	id1, isNew, err := st.InsertRawIfNew(ctx, testRaw("org_a", "fp1", 1000))
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !isNew {
		t.Error("first insert should be new")
	}

	dup := testRaw("org_a", "fp1", 2000)
	dup.ID = "raw_other"
	id2, isNew, err := st.InsertRawIfNew(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if isNew {
		t.Error("duplicate insert should not be new")
	}
	if id2 != id1 {
		t.Errorf("duplicate returned %q, want existing %q", id2, id1)
	}

	var count int
	st.DB().QueryRow(`SELECT COUNT(*) FROM permits_raw WHERE fingerprint='fp1'`).Scan(&count)
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestInsertRawIfNew_SameFingerprintDifferentOrgs(t *testing.T) {
	// WHAT: The same fingerprint may exist once per org.
	// WHY: Dedup is org-scoped; tenants do not share ingestion state.
	st := setupTestStore(t)
	ctx := context.Background()

	if _, isNew, err := st.InsertRawIfNew(ctx, testRaw("org_a", "fp1", 1000)); err != nil || !isNew {
		t.Fatalf("org_a insert: new=%v err=%v", isNew, err)
	}
	b := testRaw("org_b", "fp1", 1000)
	b.ID = "raw_b"
	if _, isNew, err := st.InsertRawIfNew(ctx, b); err != nil || !isNew {
		t.Fatalf("org_b insert: new=%v err=%v", isNew, err)
	}
}

func TestRawStatusTransitions(t *testing.T) {
	// WHAT: new → processed records the permit back-reference;
	// new → error records the detail; neither deletes the row.
	st := setupTestStore(t)
	ctx := context.Background()

	st.InsertRawIfNew(ctx, testRaw("org_a", "fp1", 1000))
	if err := st.MarkRawProcessed(ctx, "org_a", "raw_fp1", "pmt_1"); err != nil {
		t.Fatal(err)
	}
	r, err := st.GetRaw(ctx, "org_a", "raw_fp1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != RawStatusProcessed || r.PermitID != "pmt_1" {
		t.Errorf("got status=%q permit_id=%q", r.Status, r.PermitID)
	}

	st.InsertRawIfNew(ctx, testRaw("org_a", "fp2", 1000))
	if err := st.MarkRawError(ctx, "org_a", "raw_fp2", "no natural key"); err != nil {
		t.Fatal(err)
	}
	r, _ = st.GetRaw(ctx, "org_a", "raw_fp2")
	if r.Status != RawStatusError || r.ErrorDetail != "no natural key" {
		t.Errorf("got status=%q detail=%q", r.Status, r.ErrorDetail)
	}
}

func TestListRawByStatus_ScrapeOrder(t *testing.T) {
	// WHAT: Backlog listing returns rows in scraped_at ascending order.
	// WHY: Updates for one natural key must apply oldest-scrape-first so
	// the final state reflects the latest scrape.
	st := setupTestStore(t)
	ctx := context.Background()

	st.InsertRawIfNew(ctx, testRaw("org_a", "fp3", 3000))
	st.InsertRawIfNew(ctx, testRaw("org_a", "fp1", 1000))
	st.InsertRawIfNew(ctx, testRaw("org_a", "fp2", 2000))

	records, err := st.ListRawByStatus(ctx, "org_a", RawStatusNew, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records", len(records))
	}
	for i, want := range []int64{1000, 2000, 3000} {
		if records[i].ScrapedAt != want {
			t.Errorf("record %d scraped_at = %d, want %d", i, records[i].ScrapedAt, want)
		}
	}
}

func TestUpdatePermit_OptimisticVersionCheck(t *testing.T) {
	// WHAT: An update against a stale version fails with ErrStaleVersion
	// and writes nothing; a fresh update increments version by exactly 1.
	// WHY: Two overlapping passes must not both apply stale diffs.
	st := setupTestStore(t)
	ctx := context.Background()

	p := testPermit("org_a", "pmt_1", "s:906213")
	if err := st.InsertPermit(ctx, p); err != nil {
		t.Fatal(err)
	}

	p.County = "LOVING"
	if err := st.UpdatePermit(ctx, p, 1); err != nil {
		t.Fatalf("fresh update: %v", err)
	}
	if p.Version != 2 {
		t.Errorf("version = %d, want 2", p.Version)
	}

	// Same expected version again — stale.
	p.County = "WARD"
	err := st.UpdatePermit(ctx, p, 1)
	if !errors.Is(err, ErrStaleVersion) {
		t.Errorf("expected ErrStaleVersion, got %v", err)
	}
	stored, _ := st.GetPermit(ctx, "org_a", "pmt_1")
	if stored.County != "LOVING" {
		t.Errorf("stale update wrote through: county=%q", stored.County)
	}
}

func TestNaturalKeyUniquePerOrg(t *testing.T) {
	// WHAT: One natural key maps to at most one permit per org, while
	// the same key may exist in another org.
	st := setupTestStore(t)
	ctx := context.Background()

	if err := st.InsertPermit(ctx, testPermit("org_a", "pmt_1", "s:906213")); err != nil {
		t.Fatal(err)
	}
	err := st.InsertPermit(ctx, testPermit("org_a", "pmt_2", "s:906213"))
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
	if err := st.InsertPermit(ctx, testPermit("org_b", "pmt_3", "s:906213")); err != nil {
		t.Errorf("cross-org insert should succeed: %v", err)
	}
}

func TestListPermits_Filters(t *testing.T) {
	// WHAT: ListPermits narrows by county, operator and filing date range.
	st := setupTestStore(t)
	ctx := context.Background()

	for i, c := range []struct{ county, operator, filed string }{
		{"REEVES", "ACME OIL", "2024-01-10"},
		{"LOVING", "ACME OIL", "2024-02-10"},
		{"REEVES", "BURLINGTON", "2024-03-10"},
	} {
		p := testPermit("org_a", fmt.Sprintf("pmt_%d", i), fmt.Sprintf("s:%d", i))
		p.Fingerprint = fmt.Sprintf("fp_%d", i)
		p.County = c.county
		p.OperatorName = c.operator
		p.FilingDate = c.filed
		if err := st.InsertPermit(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	got, err := st.ListPermits(ctx, "org_a", PermitFilter{County: "REEVES"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("county filter: got %d, want 2", len(got))
	}

	got, _ = st.ListPermits(ctx, "org_a", PermitFilter{OperatorName: "ACME OIL", FiledTo: "2024-01-31"})
	if len(got) != 1 {
		t.Errorf("combined filter: got %d, want 1", len(got))
	}

	got, _ = st.ListPermits(ctx, "org_a", PermitFilter{FiledFrom: "2024-02-01"})
	if len(got) != 2 {
		t.Errorf("date-from filter: got %d, want 2", len(got))
	}
}

func TestTenantIsolation_Reads(t *testing.T) {
	// WHAT: Queries scoped to one org never return another org's rows,
	// even when both orgs hold identical natural keys.
	st := setupTestStore(t)
	ctx := context.Background()

	st.InsertPermit(ctx, testPermit("org_a", "pmt_a", "s:906213"))
	st.InsertPermit(ctx, testPermit("org_b", "pmt_b", "s:906213"))

	got, err := st.GetPermitByNaturalKey(ctx, "org_a", "s:906213")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "pmt_a" {
		t.Errorf("org_a lookup returned %q", got.ID)
	}

	list, _ := st.ListPermits(ctx, "org_b", PermitFilter{})
	for _, p := range list {
		if p.OrgID != "org_b" {
			t.Errorf("org_b list leaked row from %q", p.OrgID)
		}
	}
	if len(list) != 1 {
		t.Errorf("org_b list: got %d, want 1", len(list))
	}

	// Cross-org get by ID must miss.
	if p, _ := st.GetPermit(ctx, "org_a", "pmt_b"); p != nil {
		t.Error("org_a fetched org_b's permit by ID")
	}
}

func TestAppendEvent_ListOrder(t *testing.T) {
	// WHAT: Per-entity history comes back ascending by occurred_at.
	st := setupTestStore(t)
	ctx := context.Background()

	st.InsertPermit(ctx, testPermit("org_a", "pmt_1", "s:906213"))
	for i, at := range []int64{3000, 1000, 2000} {
		if err := st.AppendEvent(ctx, &Event{
			ID:         fmt.Sprintf("evt_%d", i),
			OrgID:      "org_a",
			EntityID:   "pmt_1",
			EventType:  EventUpdated,
			Source:     "normalizer",
			OccurredAt: at,
		}); err != nil {
			t.Fatal(err)
		}
	}

	events, err := st.ListEventsForEntity(ctx, "org_a", "pmt_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events", len(events))
	}
	for i, want := range []int64{1000, 2000, 3000} {
		if events[i].OccurredAt != want {
			t.Errorf("event %d at %d, want %d", i, events[i].OccurredAt, want)
		}
	}
}

func TestListEventsByTime_Range(t *testing.T) {
	// WHAT: The activity feed respects the occurred_at range and org scope.
	st := setupTestStore(t)
	ctx := context.Background()

	st.InsertPermit(ctx, testPermit("org_a", "pmt_1", "s:1"))
	for i, at := range []int64{1000, 2000, 3000} {
		st.AppendEvent(ctx, &Event{
			ID: fmt.Sprintf("evt_%d", i), OrgID: "org_a", EntityID: "pmt_1",
			EventType: EventUpdated, Source: "normalizer", OccurredAt: at,
		})
	}

	events, err := st.ListEventsByTime(ctx, "org_a", 1500, 2500, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].OccurredAt != 2000 {
		t.Errorf("range query returned %d events", len(events))
	}

	events, _ = st.ListEventsByTime(ctx, "org_b", 0, 0, 10)
	if len(events) != 0 {
		t.Error("org_b feed leaked org_a events")
	}
}

func TestInTx_RollbackOnError(t *testing.T) {
	// WHAT: An error inside InTx rolls back every write in the closure.
	// WHY: A permit write and its event must commit or fail together.
	st := setupTestStore(t)
	ctx := context.Background()

	wantErr := errors.New("boom")
	err := st.InTx(ctx, func(tx *Store) error {
		if err := tx.InsertPermit(ctx, testPermit("org_a", "pmt_1", "s:1")); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected boom, got %v", err)
	}

	if p, _ := st.GetPermit(ctx, "org_a", "pmt_1"); p != nil {
		t.Error("rolled-back insert is visible")
	}
}

func TestListPermitIDsWithoutEvents(t *testing.T) {
	// WHAT: Backfill candidates are permits with no events yet.
	st := setupTestStore(t)
	ctx := context.Background()

	st.InsertPermit(ctx, testPermit("org_a", "pmt_1", "s:1"))
	p2 := testPermit("org_a", "pmt_2", "s:2")
	p2.Fingerprint = "fp_2"
	st.InsertPermit(ctx, p2)
	st.AppendEvent(ctx, &Event{
		ID: "evt_1", OrgID: "org_a", EntityID: "pmt_1",
		EventType: EventCreated, Source: "normalizer", OccurredAt: 1000,
	})

	ids, err := st.ListPermitIDsWithoutEvents(ctx, "org_a")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "pmt_2" {
		t.Errorf("got %v, want [pmt_2]", ids)
	}
}
