package webinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultSearchBaseURL = "https://www.googleapis.com/customsearch/v1"
	searchCacheSize      = 64
	searchCacheTTL       = time.Hour
)

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchFallbackURL returns a plain Google search link for query, used when
// no live search backend is available.
func SearchFallbackURL(query string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(query)
}

type searchEntry struct {
	results  []SearchResult
	storedAt time.Time
}

// SearchClient performs web searches via the Google Custom Search API.
// Safe for concurrent use.
type SearchClient struct {
	apiKey   string
	engineID string
	baseURL  string
	httpc    *http.Client
	ttl      time.Duration
	cache    *lru.Cache[string, searchEntry]
}

// SearchOption configures a SearchClient.
type SearchOption func(*SearchClient)

// WithSearchBaseURL overrides the API endpoint. Used in tests.
func WithSearchBaseURL(base string) SearchOption {
	return func(c *SearchClient) { c.baseURL = base }
}

// WithSearchHTTPClient overrides the HTTP client.
func WithSearchHTTPClient(httpc *http.Client) SearchOption {
	return func(c *SearchClient) { c.httpc = httpc }
}

// WithSearchTTL overrides the cache TTL.
func WithSearchTTL(ttl time.Duration) SearchOption {
	return func(c *SearchClient) { c.ttl = ttl }
}

// NewSearchClient creates a client for the given API key and engine ID (cx).
func NewSearchClient(apiKey, engineID string, opts ...SearchOption) (*SearchClient, error) {
	cache, err := lru.New[string, searchEntry](searchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("webinfo: search cache: %w", err)
	}
	c := &SearchClient{
		apiKey:   apiKey,
		engineID: engineID,
		baseURL:  defaultSearchBaseURL,
		httpc:    &http.Client{Timeout: 10 * time.Second},
		ttl:      searchCacheTTL,
		cache:    cache,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Search returns up to limit results for query. Results are cached per
// (query, limit) for one hour.
func (c *SearchClient) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	key := query + "_" + strconv.Itoa(limit)
	if entry, ok := c.cache.Get(key); ok {
		if time.Since(entry.storedAt) < c.ttl {
			return entry.results, nil
		}
		c.cache.Remove(key)
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("cx", c.engineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("webinfo: build search request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webinfo: search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webinfo: search API returned %s", resp.Status)
	}

	var payload struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("webinfo: decode search response: %w", err)
	}

	results := make([]SearchResult, 0, len(payload.Items))
	for _, item := range payload.Items {
		results = append(results, SearchResult{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}
	c.cache.Add(key, searchEntry{results: results, storedAt: time.Now()})
	return results, nil
}
