// Package plugin defines the public interfaces of the crawler.
// External tools can import this package to supply custom fetchers,
// parsers, storage backends, or output writers without forking the project.
package plugin

import (
	"context"
	"time"
)

// ---------- Core Data Types ----------

// Page represents a fetched web page.
type Page struct {
	URL           string        `json:"url"`
	FinalURL      string        `json:"final_url"`
	StatusCode    int           `json:"status_code"`
	HTML          string        `json:"-"`
	FetchedAt     time.Time     `json:"fetched_at"`
	FetchDuration time.Duration `json:"fetch_duration"`
	FetcherUsed   string        `json:"fetcher_used"`
}

// ParserStats tracks the contribution of a single parser within one crawl task.
type ParserStats struct {
	// Total counts every emission, including duplicates across pages.
	Total int `json:"total"`
	// Unique counts URLs this parser was the first to discover.
	Unique int `json:"unique"`
	// Domains is the set of hosts that contributed at least one emission.
	Domains map[string]bool `json:"-"`
}

// DomainReport is the per-domain result of a crawl.
type DomainReport struct {
	Domain           string                  `json:"domain"`
	SimplifiedDomain string                  `json:"simplified_domain"`
	Status           string                  `json:"status"`
	URLs             []string                `json:"urls"`
	ParserStats      map[string]*ParserStats `json:"parser_stats"`
	URLsByParser     map[string]int          `json:"urls_by_parser"`
	Error            string                  `json:"error,omitempty"`
}

// ParserStatsOut is the wire form of ParserStats: the domain set collapses
// to a count in the aggregate report.
type ParserStatsOut struct {
	Total   int `json:"total"`
	Unique  int `json:"unique"`
	Domains int `json:"domains"`
}

// TaskReport is the final aggregated result of a crawl task.
type TaskReport struct {
	Status       string                    `json:"status"`
	TaskID       string                    `json:"task_id"`
	Duration     string                    `json:"duration"`
	Domains      []string                  `json:"domains"`
	URLsCount    map[string]int            `json:"urls_count"`
	TotalURLs    int                       `json:"total_urls"`
	ParserStats  map[string]ParserStatsOut `json:"parser_stats"`
	URLsByParser map[string]int            `json:"urls_by_parser"`
}

// URLRecord is a durable-store document for one (task, domain) pair.
type URLRecord struct {
	URLs      []string  `json:"urls"`
	Timestamp time.Time `json:"timestamp"`
}

// ---------- Progress ----------

// ProgressEvent is a status snapshot emitted by the engine. Events may be
// reordered by the consumer; treat them as eventually consistent.
type ProgressEvent struct {
	Status         string `json:"status"`
	Domain         string `json:"domain"`
	Depth          int    `json:"depth"`
	DepthProgress  string `json:"depth_progress"`
	URLsDiscovered int    `json:"urls_discovered"`
}

// ProgressFunc receives progress events from the engine.
type ProgressFunc func(ProgressEvent)

// ---------- Plugin Interfaces ----------

// Fetcher retrieves pages.
type Fetcher interface {
	// Name returns a human-readable identifier for this fetcher.
	Name() string

	// Fetch retrieves the page at the given URL. A failed fetch returns an
	// error after the fetcher has exhausted its own retry policy.
	Fetch(ctx context.Context, url string) (*Page, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// Parser extracts candidate product URLs from a page.
type Parser interface {
	// Name returns the parser identifier ("simple", "config", "ai").
	Name() string

	// Parse returns an ordered list of unique absolute URLs found in html.
	Parse(ctx context.Context, html, baseURL string) ([]string, error)
}

// Storage is the two-tier product-URL sink and its reader path.
type Storage interface {
	// SaveURLs appends urls to both tiers for (taskID, domain). Idempotent.
	SaveURLs(ctx context.Context, taskID, domain string, urls []string) error

	// FastURLs returns the members of the fast set, or an empty slice.
	FastURLs(ctx context.Context, taskID, domain string) ([]string, error)

	// DurableRecord returns the durable document, or nil if absent.
	DurableRecord(ctx context.Context, taskID, domain string) (*URLRecord, error)
}

// OutputWriter persists side outputs (JSON/CSV dumps). Engine-agnostic.
type OutputWriter interface {
	// Name returns a human-readable identifier for this writer.
	Name() string

	// WriteDomain writes the final URL set for one domain.
	WriteDomain(domain string, urls []string) error
}
