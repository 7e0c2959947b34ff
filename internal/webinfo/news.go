// Package webinfo wraps the external information services Vaani draws on:
// the NewsAPI headline feed and the Google Custom Search API.
//
// Both clients cache results in a TTL-bounded LRU so repeated questions do
// not hammer rate-limited upstreams, and both expose browsable fallback URLs
// so the assistant always has something useful to hand the user when a feed
// is unconfigured or down.
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
	defaultNewsBaseURL = "https://newsapi.org/v2"
	newsCacheSize      = 64
	newsCacheTTL       = 30 * time.Minute
)

// Article is one news headline.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"publishedAt"`
}

// NewsFallbackURL returns a Google News search link for topic, used when no
// live feed is available.
func NewsFallbackURL(topic string) string {
	return "https://news.google.com/search?q=" + url.QueryEscape(topic)
}

type newsEntry struct {
	articles []Article
	storedAt time.Time
}

// NewsClient fetches headlines from newsapi.org. Safe for concurrent use.
type NewsClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
	ttl     time.Duration
	cache   *lru.Cache[string, newsEntry]
}

// NewsOption configures a NewsClient.
type NewsOption func(*NewsClient)

// WithNewsBaseURL overrides the API endpoint. Used in tests.
func WithNewsBaseURL(base string) NewsOption {
	return func(c *NewsClient) { c.baseURL = base }
}

// WithNewsHTTPClient overrides the HTTP client.
func WithNewsHTTPClient(httpc *http.Client) NewsOption {
	return func(c *NewsClient) { c.httpc = httpc }
}

// WithNewsTTL overrides the cache TTL.
func WithNewsTTL(ttl time.Duration) NewsOption {
	return func(c *NewsClient) { c.ttl = ttl }
}

// NewNewsClient creates a client authenticated with apiKey.
func NewNewsClient(apiKey string, opts ...NewsOption) (*NewsClient, error) {
	cache, err := lru.New[string, newsEntry](newsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("webinfo: news cache: %w", err)
	}
	c := &NewsClient{
		apiKey:  apiKey,
		baseURL: defaultNewsBaseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		ttl:     newsCacheTTL,
		cache:   cache,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Headlines returns up to limit recent articles about topic, newest first.
// Results are cached per (topic, limit) for 30 minutes.
func (c *NewsClient) Headlines(ctx context.Context, topic string, limit int) ([]Article, error) {
	if topic == "" {
		topic = "technology"
	}
	if limit <= 0 {
		limit = 5
	}

	key := topic + "_" + strconv.Itoa(limit)
	if entry, ok := c.cache.Get(key); ok {
		if time.Since(entry.storedAt) < c.ttl {
			return entry.articles, nil
		}
		c.cache.Remove(key)
	}

	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("q", topic)
	q.Set("pageSize", strconv.Itoa(limit))
	q.Set("sortBy", "publishedAt")
	q.Set("language", "en")

	articles, err := c.fetch(ctx, c.baseURL+"/everything?"+q.Encode())
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, newsEntry{articles: articles, storedAt: time.Now()})
	return articles, nil
}

// TopHeadlines returns up to limit top headlines for a category (country: in).
// Not cached: top headlines churn faster than topical searches.
func (c *NewsClient) TopHeadlines(ctx context.Context, category string, limit int) ([]Article, error) {
	if category == "" {
		category = "technology"
	}
	if limit <= 0 {
		limit = 5
	}

	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	q.Set("category", category)
	q.Set("pageSize", strconv.Itoa(limit))
	q.Set("country", "in")

	return c.fetch(ctx, c.baseURL+"/top-headlines?"+q.Encode())
}

func (c *NewsClient) fetch(ctx context.Context, fullURL string) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("webinfo: build news request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webinfo: news request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webinfo: news API returned %s", resp.Status)
	}

	var payload struct {
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("webinfo: decode news response: %w", err)
	}

	articles := make([]Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		articles = append(articles, Article{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return articles, nil
}
