package fetcher

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"

	"github.com/prodspider/prodspider/pkg/plugin"
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml"

// HTTPFetcher retrieves pages over plain HTTP using Colly, with retries,
// exponential backoff and jitter.
type HTTPFetcher struct {
	collector  *colly.Collector
	crawlDelay time.Duration
	maxRetries int
	log        zerolog.Logger
}

// HTTPFetcherConfig holds configuration for the HTTP fetcher.
type HTTPFetcherConfig struct {
	UserAgent  string
	Timeout    time.Duration
	CrawlDelay time.Duration
	MaxRetries int
}

// NewHTTPFetcher creates a new Colly-based HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig, log zerolog.Logger) *HTTPFetcher {
	c := colly.NewCollector(
		colly.Async(false), // concurrency is controlled by the engine
		colly.IgnoreRobotsTxt(),
	)

	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", acceptHeader)
	})

	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &HTTPFetcher{
		collector:  c,
		crawlDelay: cfg.CrawlDelay,
		maxRetries: maxRetries,
		log:        log.With().Str("component", "http_fetcher").Logger(),
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

// Fetch retrieves targetURL, retrying on transport errors and non-2xx
// responses. Each attempt waits at least the configured crawl delay; retry
// backoff grows exponentially and is scaled by uniform jitter in [0.5, 1.0).
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*plugin.Page, error) {
	var lastErr error

	for attempt := 0; attempt < f.maxRetries; attempt++ {
		delay := f.crawlDelay
		if attempt > 0 {
			backoff := f.crawlDelay * (1 << attempt)
			jitter := 0.5 + rand.Float64()/2
			delay = time.Duration(float64(backoff) * jitter)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}

		page, err := f.fetchOnce(targetURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		f.log.Warn().Str("url", targetURL).Int("attempt", attempt+1).
			Int("max_retries", f.maxRetries).Err(err).Msg("fetch attempt failed")
	}

	return nil, fmt.Errorf("fetch %s: %w", targetURL, lastErr)
}

func (f *HTTPFetcher) fetchOnce(targetURL string) (*plugin.Page, error) {
	start := time.Now()
	page := &plugin.Page{
		URL:         targetURL,
		FinalURL:    targetURL,
		FetcherUsed: "http",
		FetchedAt:   start,
	}

	// Clone per fetch so each request gets clean state.
	c := f.collector.Clone()

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.HTML = string(r.Body)
		page.FinalURL = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			page.StatusCode = r.StatusCode
		}
	})

	err := c.Visit(targetURL)
	if err != nil && !strings.Contains(err.Error(), "already visited") {
		return nil, err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if page.StatusCode < 200 || page.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", page.StatusCode)
	}

	page.FetchDuration = time.Since(start)
	return page, nil
}

func (f *HTTPFetcher) Close() error { return nil }

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
