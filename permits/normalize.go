// CLAUDE:SUMMARY Public entry points for fingerprinting and payload parsing.
// CLAUDE:EXPORTS Fingerprint, EntityFingerprint, ParsePayload, SplitOperator
package permits

import "github.com/hazyhaar/permitwatch/permits/internal/normalize"

// Fingerprint derives a stable content identity from a raw payload.
// Deterministic regardless of payload key order; identical or
// near-identical scrapes of the same filing (whitespace, letter case)
// produce the same fingerprint. Never fails.
func Fingerprint(payload map[string]string) string {
	return normalize.Fingerprint(payload)
}

// EntityFingerprint derives a normalized entity identity from the
// org-scoped natural key. This is a separate identity domain from the
// raw content fingerprint; the two are never compared.
func EntityFingerprint(orgID, naturalKey string) string {
	return normalize.EntityFingerprint(orgID, naturalKey)
}

// ParsePayload validates and coerces a raw payload into typed fields.
// Returns field-level warnings for malformed optional values; errors
// only when no natural key can be derived.
func ParsePayload(payload map[string]string) (*ParsedFields, []string, error) {
	return normalize.ParsePayload(payload)
}

// SplitOperator splits a combined "NAME (NUMBER)" operator string into
// its name and operator number.
func SplitOperator(combined string) (name, number string) {
	return normalize.SplitOperator(combined)
}
