package tools

import (
	"context"
	"net/http"
	"time"
)

// Tool names exposed to the research agents.
const (
	ToolWebSearch  = "web_search"
	ToolFetchPage  = "get_page_content"
	ToolBatchFetch = "batch_fetch"
)

// Gateway is the agents' window to the outside world. Results come back as
// plain text ready to drop into a model transcript; transport failures are
// returned as errors so callers can decide between retry and degradation.
type Gateway interface {
	// Search runs a web search and returns a numbered listing of results
	// (title, URL, snippet per entry).
	Search(ctx context.Context, query string) (string, error)
	// Fetch downloads a single page and extracts its readable text.
	Fetch(ctx context.Context, url string) (string, error)
	// BatchFetch downloads several pages concurrently. Per-URL failures are
	// reported inline in the combined output rather than failing the batch.
	BatchFetch(ctx context.Context, urls []string) (string, error)
}

// Config holds tunables for the HTTP gateway.
type Config struct {
	MaxSearchResults int
	FetchTimeout     time.Duration // per-URL budget
	BatchTimeout     time.Duration // whole-batch budget
	BatchConcurrency int
	MaxContentLength int    // extracted text cap, in bytes
	TimeWindow       string // DuckDuckGo df param: d, w, m, y; empty = no limit
	UserAgent        string
}

func DefaultConfig() Config {
	return Config{
		MaxSearchResults: 15,
		FetchTimeout:     25 * time.Second,
		BatchTimeout:     90 * time.Second,
		BatchConcurrency: 3,
		MaxContentLength: 50000,
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	}
}

// HTTPGateway implements Gateway over plain HTTP: DuckDuckGo's HTML frontend
// for search and direct page downloads for fetch.
type HTTPGateway struct {
	config Config
	client *http.Client
}

var _ Gateway = &HTTPGateway{}

func NewHTTPGateway(config Config) *HTTPGateway {
	return &HTTPGateway{
		config: config,
		client: &http.Client{
			Timeout: config.BatchTimeout,
		},
	}
}
