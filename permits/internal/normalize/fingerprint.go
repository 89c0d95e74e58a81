// CLAUDE:SUMMARY Deterministic SHA-256 fingerprints for raw payloads and normalized entities.
// CLAUDE:EXPORTS Fingerprint, EntityFingerprint
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintFields is the fixed, ordered subset of payload keys hashed
// into a raw fingerprint. Key order in the payload never matters — only
// this list's order does. The list covers every change-bearing field,
// not just the natural-key fields: a re-scrape that changed the county
// must produce a new fingerprint so it clears raw dedup and reaches the
// normalizer as an update.
var fingerprintFields = []string{
	"status_no",
	"api_no",
	"operator",
	"lease_name",
	"lease_no",
	"well_no",
	"county",
	"district",
	"field_name",
	"submitted_date",
	"status_date",
	"latitude",
	"longitude",
	"total_depth",
	"acres",
	"well_count",
}

const (
	// fpDelimiter separates field values in the hash input. ASCII unit
	// separator — never appears in scraped form data.
	fpDelimiter = "\x1f"
	// fpAbsent marks a field missing from the payload. Distinct from ""
	// so "field absent" and "field present but empty" never collide.
	fpAbsent = "\x1e"
)

// Fingerprint derives a stable content identity from a raw payload.
// Hashed values are trimmed and case-folded, so near-identical scrapes
// of the same filing (whitespace, letter case) produce the same
// fingerprint. Never fails: a payload with none of the hashed fields
// present still hashes deterministically.
func Fingerprint(payload map[string]string) string {
	var b strings.Builder
	for i, key := range fingerprintFields {
		if i > 0 {
			b.WriteString(fpDelimiter)
		}
		v, ok := payload[key]
		if !ok {
			b.WriteString(fpAbsent)
			continue
		}
		b.WriteString(strings.ToLower(strings.TrimSpace(v)))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// EntityFingerprint derives the normalized entity's identity from its
// org-scoped natural key. This is a separate identity domain from the
// raw content fingerprint: raw fingerprints answer "have we scraped
// this exact filing before", entity fingerprints answer "which permit
// is this". The two are never compared.
func EntityFingerprint(orgID, naturalKey string) string {
	sum := sha256.Sum256([]byte("permit" + fpDelimiter + orgID + fpDelimiter + naturalKey))
	return hex.EncodeToString(sum[:])
}
