// CLAUDE:SUMMARY Payload parsing: typed field extraction, operator NAME (NUMBER) split, date/numeric coercion with field-level warnings.
// Package normalize turns semi-structured scraped payloads into typed,
// validated permit fields. Untyped data never crosses this boundary:
// parsing yields either a ParsedFields value (plus non-fatal warnings)
// or an error that marks the raw record terminal.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParsedFields is the strongly-typed result of parsing one raw payload.
// String zero values and nil pointers mean "field absent".
type ParsedFields struct {
	StatusNo       string
	APINo          string
	OperatorName   string
	OperatorNumber string
	LeaseName      string
	LeaseNo        string
	WellNo         string
	County         string
	District       string
	FieldName      string
	FilingDate     string // YYYY-MM-DD
	StatusDate     string // YYYY-MM-DD
	Latitude       *float64
	Longitude      *float64
	TotalDepth     *float64
	Acres          *float64
	WellCount      *int64
}

// NaturalKey returns the org-scoped business identity of the filing.
// The status/tracking number is canonical; the API number is the
// fallback when no status number was scraped. The prefix records which
// key kind was used so the fallback order stays explicit in the data.
func (f *ParsedFields) NaturalKey() string {
	if f.StatusNo != "" {
		return "s:" + f.StatusNo
	}
	return "a:" + f.APINo
}

// operatorPattern splits "BURLINGTON RESOURCES O & G CO LP (109333)"
// into name and number: trailing parenthesized digits are the operator
// number, the trimmed remainder is the name.
var operatorPattern = regexp.MustCompile(`^(.*?)\s*\((\d+)\)\s*$`)

// SplitOperator splits a combined "NAME (NUMBER)" operator string.
// Without a trailing parenthesized number the whole trimmed input is
// the name and the number is empty.
func SplitOperator(combined string) (name, number string) {
	combined = strings.TrimSpace(combined)
	if m := operatorPattern.FindStringSubmatch(combined); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	return combined, ""
}

// dateLayouts are accepted scrape date formats, tried in order.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

// ParsePayload validates and coerces a raw payload into ParsedFields.
//
// A payload with neither status_no nor api_no fails hard — there is no
// usable natural key. Malformed numeric or date values are field-level
// failures only: the field stays absent, a warning is recorded, and the
// record as a whole still succeeds. Empty strings are treated as absent.
func ParsePayload(payload map[string]string) (*ParsedFields, []string, error) {
	if len(payload) == 0 {
		return nil, nil, fmt.Errorf("empty payload")
	}

	f := &ParsedFields{
		StatusNo:  text(payload, "status_no"),
		APINo:     text(payload, "api_no"),
		LeaseName: text(payload, "lease_name"),
		LeaseNo:   text(payload, "lease_no"),
		WellNo:    text(payload, "well_no"),
		County:    strings.ToUpper(text(payload, "county")),
		District:  text(payload, "district"),
		FieldName: text(payload, "field_name"),
	}

	if f.StatusNo == "" && f.APINo == "" {
		return nil, nil, fmt.Errorf("no natural key: payload has neither status_no nor api_no")
	}

	f.OperatorName, f.OperatorNumber = SplitOperator(text(payload, "operator"))

	var warnings []string
	f.FilingDate = parseDate(payload, "submitted_date", &warnings)
	f.StatusDate = parseDate(payload, "status_date", &warnings)
	f.Latitude = parseFloat(payload, "latitude", &warnings)
	f.Longitude = parseFloat(payload, "longitude", &warnings)
	f.TotalDepth = parseFloat(payload, "total_depth", &warnings)
	f.Acres = parseFloat(payload, "acres", &warnings)
	f.WellCount = parseInt(payload, "well_count", &warnings)

	return f, warnings, nil
}

// text returns the trimmed payload value, "" if absent or empty.
// Explicit "null" markers from the scraper are coerced to absent too.
func text(payload map[string]string, key string) string {
	v := strings.TrimSpace(payload[key])
	if strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

func parseDate(payload map[string]string, key string, warnings *[]string) string {
	v := text(payload, key)
	if v == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02")
		}
	}
	*warnings = append(*warnings, fmt.Sprintf("%s: unparseable date %q", key, v))
	return ""
}

func parseFloat(payload map[string]string, key string, warnings *[]string) *float64 {
	v := text(payload, key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s: unparseable number %q", key, v))
		return nil
	}
	return &n
}

func parseInt(payload map[string]string, key string, warnings *[]string) *int64 {
	v := text(payload, key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s: unparseable integer %q", key, v))
		return nil
	}
	return &n
}
