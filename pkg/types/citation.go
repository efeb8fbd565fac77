package types

// CitationRecord is a single cached source upserted into the citation
// cache by search_cached, and later read by get_cached_source and
// verify_citations. Content preserves the original case and whitespace
// of the fetched source; comparisons at match time operate on
// transient normalized copies only, never on the stored value.
type CitationRecord struct {
	URL         string `json:"url"`
	SourceName  string `json:"sourceName"`
	Content     string `json:"content"`
	PublishedAt string `json:"publishedAt,omitempty"` // YYYY-MM-DD
	FetchedAt   int64  `json:"fetchedAt"`
}

// Citation is one inline citation marker a worker attaches to a quoted
// claim, in the wire format:
//
//	"quote" [Source, URL, YYYY-MM-DD] [N]
//
// and the trailing list format:
//
//	[N] "quote" - Source - URL - YYYY-MM-DD
type Citation struct {
	Index       int    `json:"index"` // the [N] marker
	Quote       string `json:"quote"`
	SourceName  string `json:"sourceName"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}
