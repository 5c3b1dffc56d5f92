package fetcher

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"

	"github.com/prodspider/prodspider/pkg/plugin"
)

// blockMarkers identify anti-bot interstitials in rendered markup.
var blockMarkers = []string{"captcha", "robot", "access denied"}

// BrowserFetcher renders pages in headless Chrome via Rod for sites that
// deliver no usable markup without JavaScript. The browser is a process
// singleton; Fetch serializes page use with a mutex.
type BrowserFetcher struct {
	browser    *rod.Browser
	timeout    time.Duration
	maxRetries int
	log        zerolog.Logger

	mu        sync.Mutex
	blockHits int
}

// BrowserFetcherConfig holds configuration for the browser fetcher.
type BrowserFetcherConfig struct {
	Timeout    time.Duration
	MaxRetries int
}

// NewBrowserFetcher launches headless Chrome and connects to it.
func NewBrowserFetcher(cfg BrowserFetcherConfig, log zerolog.Logger) (*BrowserFetcher, error) {
	u, err := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &BrowserFetcher{
		browser:    browser,
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        log.With().Str("component", "browser_fetcher").Logger(),
	}, nil
}

func (f *BrowserFetcher) Name() string { return "browser" }

// Fetch renders targetURL. Pages that present a captcha/robot interstitial
// count as failures; after the second such hit cookies are cleared before
// the next attempt.
func (f *BrowserFetcher) Fetch(ctx context.Context, targetURL string) (*plugin.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := f.render(targetURL)
		if err == nil {
			f.blockHits = 0
			return page, nil
		}
		lastErr = err

		if strings.Contains(err.Error(), "blocked") {
			f.blockHits++
			if f.blockHits >= 2 {
				f.clearCookies()
			}
		}
		f.log.Warn().Str("url", targetURL).Int("attempt", attempt+1).Err(err).
			Msg("browser fetch attempt failed")
	}

	return nil, fmt.Errorf("browser fetch %s: %w", targetURL, lastErr)
}

func (f *BrowserFetcher) render(targetURL string) (*plugin.Page, error) {
	start := time.Now()

	// stealth.Page clears navigator.webdriver and the other automation tells.
	rodPage, err := stealth.Page(f.browser)
	if err != nil {
		return nil, err
	}
	defer rodPage.Close()

	rodPage = rodPage.Timeout(f.timeout)

	if err := rodPage.Navigate(targetURL); err != nil {
		return nil, err
	}
	if err := rodPage.WaitLoad(); err != nil {
		return nil, err
	}

	f.scroll(rodPage)

	html, err := rodPage.HTML()
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(html)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return nil, fmt.Errorf("blocked: page contains %q", marker)
		}
	}

	page := &plugin.Page{
		URL:           targetURL,
		FinalURL:      targetURL,
		StatusCode:    200,
		HTML:          html,
		FetchedAt:     start,
		FetchDuration: time.Since(start),
		FetcherUsed:   "browser",
	}
	if info, err := rodPage.Info(); err == nil {
		page.FinalURL = info.URL
	}
	return page, nil
}

// scroll simulates a human reading the page: vertical steps of randomized
// size with short pauses, so lazy-loaded product grids render.
func (f *BrowserFetcher) scroll(page *rod.Page) {
	steps := 3 + rand.Intn(3)
	for i := 0; i < steps; i++ {
		offset := 300 + rand.Intn(500)
		_, _ = page.Eval(`(y) => window.scrollBy(0, y)`, offset)
		time.Sleep(time.Duration(100+rand.Intn(200)) * time.Millisecond)
	}
}

func (f *BrowserFetcher) clearCookies() {
	// SetCookies(nil) clears every cookie in the browser.
	if err := f.browser.SetCookies(nil); err != nil {
		f.log.Warn().Err(err).Msg("failed to clear cookies")
	}
}

func (f *BrowserFetcher) Close() error {
	if f.browser != nil {
		return f.browser.Close()
	}
	return nil
}
