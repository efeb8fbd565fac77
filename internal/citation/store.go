// Package citation defines the per-session source cache that backs
// search_cached, get_cached_source, and verify_citations. A source
// fetched once during a session is upserted here and never re-fetched;
// citation verification checks claimed quotes against this cache
// instead of the live network.
package citation

import (
	"context"
	"strings"

	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// Store is the citation cache abstraction. Implementations must
// serialize concurrent Upserts to the same (sessionID, url) so a crash
// mid-write never leaves a partially written record visible to Get.
type Store interface {
	// Upsert inserts or replaces the cached record for a URL within a
	// session. Content is stored exactly as fetched; no normalization.
	Upsert(ctx context.Context, sessionID, url string, rec types.CitationRecord) error

	// Get returns the cached record for a URL within a session.
	Get(ctx context.Context, sessionID, url string) (types.CitationRecord, bool, error)

	// ContainsQuote reports whether quote appears as a substring of the
	// cached content for (sessionID, url), after whitespace collapsing
	// and case folding on transient copies only — the stored content is
	// never mutated.
	ContainsQuote(ctx context.Context, sessionID, url, quote string) (bool, error)

	// List returns every URL cached for a session, for use by tools
	// that need to enumerate available sources (e.g. a plan step that
	// references "all sources gathered so far").
	List(ctx context.Context, sessionID string) ([]string, error)
}

// NormalizeForMatch collapses runs of whitespace to a single space,
// trims the result, and lowercases it. It is applied to both the quote
// and the cached content before a substring check — never to what is
// stored or displayed.
func NormalizeForMatch(s string) string {
	fields := strings.Fields(s)
	return strings.ToLower(strings.Join(fields, " "))
}

// ContainsNormalized reports whether needle appears in haystack after
// NormalizeForMatch is applied to both.
func ContainsNormalized(haystack, needle string) bool {
	if strings.TrimSpace(needle) == "" {
		return false
	}
	return strings.Contains(NormalizeForMatch(haystack), NormalizeForMatch(needle))
}
