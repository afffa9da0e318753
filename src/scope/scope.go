// Package scope derives deterministic, human-opaque namespace keys from
// (user identity, optional house, optional dataset). Every piece of
// persisted client state is partitioned through these keys so no two
// users or houses can read or overwrite each other's data.
package scope

import "strings"

// Purpose tags form a closed set. Adding a tag here is the only way to
// open a new key namespace.
const (
	PurposeHouses       = "houses"
	PurposeActiveHouse  = "active-house"
	PurposeDatasets     = "datasets"
	PurposeActiveClient = "active-client"
)

const separator = "::"

// DeriveKey builds the scoped key for a purpose tag and identity
// components. The email is trimmed and lower-cased, remaining parts are
// trimmed only (house IDs are case-sensitive). Each component is escaped
// before joining, so the mapping (purpose, identity) -> key is injective
// even when a component contains the separator characters.
//
// An empty email is not an error; callers validate identity upstream.
// The function is pure and safe for concurrent use.
func DeriveKey(purpose, email string, parts ...string) string {
	segments := make([]string, 0, 2+len(parts))
	segments = append(segments, escape(purpose), escape(NormalizeEmail(email)))
	for _, p := range parts {
		segments = append(segments, escape(strings.TrimSpace(p)))
	}
	return strings.Join(segments, separator)
}

// KeyPrefix returns the prefix shared by all keys derived from the same
// leading components, for range scans over a namespace.
func KeyPrefix(purpose, email string, parts ...string) string {
	return DeriveKey(purpose, email, parts...) + separator
}

// NormalizeEmail is the canonical form used in every key: trimmed and
// lower-cased. Two identities are equal iff their normalized forms are.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// escape percent-encodes '%' and ':' inside a component. '%' goes first
// so the encoding stays reversible.
func escape(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	return strings.ReplaceAll(s, ":", "%3A")
}
