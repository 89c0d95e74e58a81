// CLAUDE:SUMMARY Re-exports store and pipeline types (RawRecord, Permit, Event, BatchSummary) as the permits public API.
// Package permits ingests scraped Texas RRC W-1 permit filings,
// normalizes them into a relational store and tracks every change as an
// append-only event log.
//
// Control flow: scraper (external) → raw ingest store → normalizer →
// normalized store + event log. Every row and every query is scoped to
// an org; single-tenant deployments use DefaultOrgID.
package permits

import (
	"github.com/hazyhaar/permitwatch/permits/internal/normalize"
	"github.com/hazyhaar/permitwatch/permits/internal/pipeline"
	"github.com/hazyhaar/permitwatch/permits/internal/store"
)

// DefaultOrgID is the sentinel org for single-tenant deployments.
const DefaultOrgID = "org_default"

// Re-export store types for the public API.
type (
	RawRecord    = store.RawRecord
	Permit       = store.Permit
	Event        = store.Event
	PermitFilter = store.PermitFilter
	OrgStats     = store.OrgStats
	ParsedFields = normalize.ParsedFields
	BatchSummary = pipeline.Summary
	FieldChange  = pipeline.FieldChange
	Diff         = pipeline.Diff
)

// Raw record lifecycle statuses.
const (
	RawStatusNew       = store.RawStatusNew
	RawStatusProcessed = store.RawStatusProcessed
	RawStatusError     = store.RawStatusError
)

// Event types.
const (
	EventCreated  = store.EventCreated
	EventUpdated  = store.EventUpdated
	EventSnapshot = store.EventSnapshot
)
