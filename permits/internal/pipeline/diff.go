// CLAUDE:SUMMARY Field-by-field diff between stored permit attributes and newly parsed fields.
package pipeline

import (
	"encoding/json"

	"github.com/hazyhaar/permitwatch/permits/internal/normalize"
	"github.com/hazyhaar/permitwatch/permits/internal/store"
)

// FieldChange records one attribute transition inside an event diff.
// Old is nil when the field was previously absent.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff maps changed field names to their old/new values. Housekeeping
// fields (version, updated_at, raw_ref) never appear here.
type Diff map[string]FieldChange

// MarshalDiff encodes a diff for storage in an event row.
func MarshalDiff(d Diff) string {
	if len(d) == 0 {
		return "{}"
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// applyFields writes parsed values onto the permit and returns the diff
// of what actually changed. Absent parsed fields (empty string, nil
// pointer) are never treated as a change from a previously-set value —
// a sparse re-scrape must not erase known attributes.
func applyFields(p *store.Permit, f *normalize.ParsedFields) Diff {
	d := Diff{}

	setText := func(name string, dst *string, v string) {
		if v == "" || v == *dst {
			return
		}
		d[name] = FieldChange{Old: textOrNil(*dst), New: v}
		*dst = v
	}
	setFloat := func(name string, dst **float64, v *float64) {
		if v == nil || (*dst != nil && **dst == *v) {
			return
		}
		d[name] = FieldChange{Old: floatOrNil(*dst), New: *v}
		*dst = v
	}

	setText("status_no", &p.StatusNo, f.StatusNo)
	setText("api_no", &p.APINo, f.APINo)
	setText("operator_name", &p.OperatorName, f.OperatorName)
	setText("operator_number", &p.OperatorNumber, f.OperatorNumber)
	setText("lease_name", &p.LeaseName, f.LeaseName)
	setText("lease_no", &p.LeaseNo, f.LeaseNo)
	setText("well_no", &p.WellNo, f.WellNo)
	setText("county", &p.County, f.County)
	setText("district", &p.District, f.District)
	setText("field_name", &p.FieldName, f.FieldName)
	setText("filing_date", &p.FilingDate, f.FilingDate)
	setText("status_date", &p.StatusDate, f.StatusDate)
	setFloat("latitude", &p.Latitude, f.Latitude)
	setFloat("longitude", &p.Longitude, f.Longitude)
	setFloat("total_depth", &p.TotalDepth, f.TotalDepth)
	setFloat("acres", &p.Acres, f.Acres)

	if f.WellCount != nil && (p.WellCount == nil || *p.WellCount != *f.WellCount) {
		var old any
		if p.WellCount != nil {
			old = *p.WellCount
		}
		d["well_count"] = FieldChange{Old: old, New: *f.WellCount}
		p.WellCount = f.WellCount
	}

	return d
}

// Snapshot returns a full diff of every populated field, with nil old
// values. Used for created and snapshot events so replay can treat all
// event types uniformly.
func Snapshot(p *store.Permit) Diff {
	d := Diff{}
	add := func(name, v string) {
		if v != "" {
			d[name] = FieldChange{New: v}
		}
	}
	add("status_no", p.StatusNo)
	add("api_no", p.APINo)
	add("operator_name", p.OperatorName)
	add("operator_number", p.OperatorNumber)
	add("lease_name", p.LeaseName)
	add("lease_no", p.LeaseNo)
	add("well_no", p.WellNo)
	add("county", p.County)
	add("district", p.District)
	add("field_name", p.FieldName)
	add("filing_date", p.FilingDate)
	add("status_date", p.StatusDate)

	if p.Latitude != nil {
		d["latitude"] = FieldChange{New: *p.Latitude}
	}
	if p.Longitude != nil {
		d["longitude"] = FieldChange{New: *p.Longitude}
	}
	if p.TotalDepth != nil {
		d["total_depth"] = FieldChange{New: *p.TotalDepth}
	}
	if p.Acres != nil {
		d["acres"] = FieldChange{New: *p.Acres}
	}
	if p.WellCount != nil {
		d["well_count"] = FieldChange{New: *p.WellCount}
	}
	return d
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
