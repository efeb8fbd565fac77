package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// SearchResult is one hit a SearchProvider returns for a query, ready
// to be upserted into the citation cache.
type SearchResult struct {
	URL         string
	SourceName  string
	Content     string
	PublishedAt string
}

// SearchProvider is the pluggable web search backend search_cached
// wraps. The concrete implementation (a real search API, a crawl
// index, or an HTTP fetch of a known URL) is deployment-specific;
// HTTPSearchProvider below is the bundled fallback, grounded on the
// same fetch-and-convert shape a generic web-fetch tool would use.
type SearchProvider interface {
	Search(ctx context.Context, query string, depth int) ([]SearchResult, error)
}

const (
	searchMaxResponseSize = 5 * 1024 * 1024
	searchDefaultTimeout  = 30 * time.Second
)

// HTTPSearchProvider treats a query that is itself a URL as a direct
// fetch, converting the response to normalized text before it reaches
// the citation cache. It has no opinion about ranking or crawling a
// real search index; queries that aren't URLs fail with a descriptive
// error so a deployment swaps in a real provider rather than silently
// getting empty results.
type HTTPSearchProvider struct {
	client *http.Client
}

// NewHTTPSearchProvider creates the bundled direct-fetch provider.
func NewHTTPSearchProvider() *HTTPSearchProvider {
	return &HTTPSearchProvider{client: &http.Client{Timeout: searchDefaultTimeout}}
}

func (p *HTTPSearchProvider) Search(ctx context.Context, query string, depth int) ([]SearchResult, error) {
	url := strings.TrimSpace(query)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("no search backend configured: query %q is not a fetchable URL", query)
	}

	reqCtx, cancel := context.WithTimeout(ctx, searchDefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; TandemAI-research-worker/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.1")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider failure: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider failure: status %d", resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, searchMaxResponseSize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("provider failure reading response: %w", err)
	}
	if len(body) > searchMaxResponseSize {
		return nil, fmt.Errorf("provider failure: response too large")
	}

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		if text, err := extractTextFromHTML(content); err == nil {
			content = text
		}
	}

	return []SearchResult{{URL: url, SourceName: hostOf(url), Content: content}}, nil
}

func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

// convertHTMLToMarkdown is kept for providers that want markdown-form
// cached content instead of plain text; search_cached itself stores
// plain text via extractTextFromHTML.
func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}

func hostOf(rawURL string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// --- search_cached ---

const searchCachedDescription = `Searches for sources relevant to a query, upserting every result into
the session's citation cache before returning it.

Usage:
- Only available to worker agents, never the supervisor
- Every returned source can subsequently be quoted and verified via verify_citations
- depth is an optional hint to the search backend (default: 1)`

// SearchCachedTool implements search_cached.
type SearchCachedTool struct {
	provider SearchProvider
}

// SearchCachedInput is the input for search_cached.
type SearchCachedInput struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionID,omitempty"`
	Depth     int    `json:"depth,omitempty"`
}

// NewSearchCachedTool creates the search_cached tool.
func NewSearchCachedTool(provider SearchProvider) *SearchCachedTool {
	return &SearchCachedTool{provider: provider}
}

func (t *SearchCachedTool) ID() string          { return "search_cached" }
func (t *SearchCachedTool) Description() string { return searchCachedDescription }

func (t *SearchCachedTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Search query"},
			"depth": {"type": "integer", "description": "Optional search depth hint"}
		},
		"required": ["query"]
	}`)
}

func (t *SearchCachedTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params SearchCachedInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Citations == nil {
		return nil, fmt.Errorf("search_cached requires a citation store")
	}

	depth := params.Depth
	if depth <= 0 {
		depth = 1
	}

	results, err := t.provider.Search(ctx, params.Query, depth)
	if err != nil {
		return nil, fmt.Errorf("provider failure: %w", err)
	}

	now := time.Now().Unix()
	records := make([]types.CitationRecord, 0, len(results))
	for _, r := range results {
		rec := types.CitationRecord{
			URL:         r.URL,
			SourceName:  r.SourceName,
			Content:     r.Content,
			PublishedAt: r.PublishedAt,
			FetchedAt:   now,
		}
		if err := toolCtx.Citations.Upsert(ctx, toolCtx.SessionID, r.URL, rec); err != nil {
			return nil, fmt.Errorf("failed to cache source %s: %w", r.URL, err)
		}
		records = append(records, rec)
	}

	out, _ := json.MarshalIndent(records, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("Found %d source(s)", len(records)),
		Output: string(out),
		Metadata: map[string]any{
			"query": params.Query,
			"count": len(records),
		},
	}, nil
}

func (t *SearchCachedTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- get_cached_source ---

const getCachedSourceDescription = `Returns the cached record for a URL previously returned by search_cached.`

// GetCachedSourceTool implements get_cached_source.
type GetCachedSourceTool struct{}

// NewGetCachedSourceTool creates the get_cached_source tool.
func NewGetCachedSourceTool() *GetCachedSourceTool { return &GetCachedSourceTool{} }

// GetCachedSourceInput is the input for get_cached_source.
type GetCachedSourceInput struct {
	URL string `json:"url"`
}

func (t *GetCachedSourceTool) ID() string          { return "get_cached_source" }
func (t *GetCachedSourceTool) Description() string { return getCachedSourceDescription }

func (t *GetCachedSourceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The cached source URL"}
		},
		"required": ["url"]
	}`)
}

func (t *GetCachedSourceTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GetCachedSourceInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Citations == nil {
		return nil, fmt.Errorf("get_cached_source requires a citation store")
	}

	rec, ok, err := toolCtx.Citations.Get(ctx, toolCtx.SessionID, params.URL)
	if err != nil {
		return nil, fmt.Errorf("not-found: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("not-found: %s is not cached for this session", params.URL)
	}

	out, _ := json.MarshalIndent(rec, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("Cached source: %s", rec.SourceName),
		Output: string(out),
	}, nil
}

func (t *GetCachedSourceTool) EinoTool() einotool.InvokableTool { return &einoToolWrapper{tool: t} }

// --- verify_citations ---

const verifyCitationsDescription = `Verifies every inline citation in a response against the session's
citation cache, performing no external calls.

Parses the trailing citation list "[N] \"quote\" - source - url - date"
and checks, per entry, that the URL is cached for this session and that
the quote appears in its content (whitespace-collapsed, case-insensitive).`

var citationLineRe = regexp.MustCompile(`^\s*\[(\d+)\]\s*"([^"]*)"\s*-\s*([^-]+?)\s*-\s*(\S+)\s*-\s*(\S+)\s*$`)

// VerifyCitationsTool implements verify_citations.
type VerifyCitationsTool struct{}

// NewVerifyCitationsTool creates the verify_citations tool.
func NewVerifyCitationsTool() *VerifyCitationsTool { return &VerifyCitationsTool{} }

// VerifyCitationsInput is the input for verify_citations.
type VerifyCitationsInput struct {
	ResponseText string `json:"responseText"`
}

// VerifyCitationFailure describes one citation that failed verification.
type VerifyCitationFailure struct {
	RefNum int    `json:"refNum"`
	Quote  string `json:"quote"`
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// VerifyCitationsOutput is the structured result of verify_citations.
type VerifyCitationsOutput struct {
	AllVerified   bool                    `json:"allVerified"`
	Total         int                     `json:"total"`
	VerifiedCount int                     `json:"verifiedCount"`
	Failed        []VerifyCitationFailure `json:"failed"`
}

func (t *VerifyCitationsTool) ID() string          { return "verify_citations" }
func (t *VerifyCitationsTool) Description() string { return verifyCitationsDescription }

func (t *VerifyCitationsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"responseText": {"type": "string", "description": "The response text containing a trailing citation list"}
		},
		"required": ["responseText"]
	}`)
}

func (t *VerifyCitationsTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params VerifyCitationsInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if toolCtx == nil || toolCtx.Citations == nil {
		return nil, fmt.Errorf("verify_citations requires a citation store")
	}

	entries, err := parseCitationTail(params.ResponseText)
	if err != nil {
		return nil, err
	}

	out := VerifyCitationsOutput{Total: len(entries)}
	for _, c := range entries {
		ok, err := toolCtx.Citations.ContainsQuote(ctx, toolCtx.SessionID, c.URL, c.Quote)
		if err != nil || !citationCachedOK(ctx, toolCtx, c.URL) {
			out.Failed = append(out.Failed, VerifyCitationFailure{
				RefNum: c.Index, Quote: c.Quote, URL: c.URL, Reason: "URL not found in session",
			})
			continue
		}
		if !ok {
			out.Failed = append(out.Failed, VerifyCitationFailure{
				RefNum: c.Index, Quote: c.Quote, URL: c.URL, Reason: "Quote not found in source content",
			})
			continue
		}
		out.VerifiedCount++
	}
	out.AllVerified = len(entries) > 0 && out.VerifiedCount == out.Total

	data, _ := json.MarshalIndent(out, "", "  ")
	return &Result{
		Title:  fmt.Sprintf("%d/%d citations verified", out.VerifiedCount, out.Total),
		Output: string(data),
		Metadata: map[string]any{
			"allVerified": out.AllVerified,
		},
	}, nil
}

// citationCachedOK reports whether url is cached for the session,
// independent of ContainsQuote's own not-found error path, so
// "not cached" and "cached but quote missing" produce distinct reasons.
func citationCachedOK(ctx context.Context, toolCtx *Context, url string) bool {
	_, ok, err := toolCtx.Citations.Get(ctx, toolCtx.SessionID, url)
	return err == nil && ok
}

// parseCitationTail parses the "[N] \"quote\" - source - url - date"
// lines a worker's final response appends after its prose.
func parseCitationTail(text string) ([]types.Citation, error) {
	var out []types.Citation
	for _, line := range strings.Split(text, "\n") {
		m := citationLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("malformed citation block: bad index in %q", line)
		}
		out = append(out, types.Citation{
			Index:       idx,
			Quote:       m[2],
			SourceName:  strings.TrimSpace(m[3]),
			URL:         m[4],
			PublishedAt: m[5],
		})
	}
	return out, nil
}

