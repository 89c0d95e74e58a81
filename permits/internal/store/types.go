// CLAUDE:SUMMARY All store data types: RawRecord, Permit, Event, PermitFilter, OrgStats.
package store

// Raw record lifecycle statuses.
const (
	RawStatusNew       = "new"
	RawStatusProcessed = "processed"
	RawStatusError     = "error"
)

// Event types.
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventSnapshot = "snapshot"
)

// EntityTypePermit is the only entity type the pipeline emits events for.
const EntityTypePermit = "permit"

// RawRecord is one scraped payload, stored verbatim before normalization.
type RawRecord struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Fingerprint string `json:"fingerprint"`
	SourceURL   string `json:"source_url"`
	PayloadJSON string `json:"payload_json"`
	Status      string `json:"status"`
	ErrorDetail string `json:"error_detail,omitempty"`
	PermitID    string `json:"permit_id,omitempty"` // back-reference set after normalization
	ScrapedAt   int64  `json:"scraped_at"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Permit is the normalized representation of a W-1 drilling permit filing.
type Permit struct {
	ID             string   `json:"id"`
	OrgID          string   `json:"org_id"`
	Fingerprint    string   `json:"fingerprint"`
	NaturalKey     string   `json:"natural_key"`
	StatusNo       string   `json:"status_no"`
	APINo          string   `json:"api_no"`
	OperatorName   string   `json:"operator_name"`
	OperatorNumber string   `json:"operator_number"`
	LeaseName      string   `json:"lease_name"`
	LeaseNo        string   `json:"lease_no"`
	WellNo         string   `json:"well_no"`
	County         string   `json:"county"`
	District       string   `json:"district"`
	FieldName      string   `json:"field_name"`
	FilingDate     string   `json:"filing_date"` // YYYY-MM-DD, "" = absent
	StatusDate     string   `json:"status_date"` // YYYY-MM-DD, "" = absent
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	TotalDepth     *float64 `json:"total_depth,omitempty"`
	Acres          *float64 `json:"acres,omitempty"`
	WellCount      *int64   `json:"well_count,omitempty"`
	Version        int64    `json:"version"`
	RawRef         string   `json:"raw_ref,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// Event is one immutable change record for a normalized permit.
type Event struct {
	ID           string `json:"id"`
	OrgID        string `json:"org_id"`
	EntityType   string `json:"entity_type"`
	EntityID     string `json:"entity_id"`
	EventType    string `json:"event_type"` // created | updated | snapshot
	DiffJSON     string `json:"diff_json"`
	WarningsJSON string `json:"warnings_json"`
	Source       string `json:"source"`
	OccurredAt   int64  `json:"occurred_at"`
}

// PermitFilter narrows ListPermits. Zero values mean "no filter".
type PermitFilter struct {
	County       string
	District     string
	OperatorName string
	FiledFrom    string // YYYY-MM-DD inclusive
	FiledTo      string // YYYY-MM-DD inclusive
	Limit        int
}

// OrgStats holds aggregate counters for one org.
type OrgStats struct {
	Permits      int `json:"permits"`
	Events       int `json:"events"`
	RawNew       int `json:"raw_new"`
	RawProcessed int `json:"raw_processed"`
	RawError     int `json:"raw_error"`
}
