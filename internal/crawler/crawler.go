// Package crawler implements the crawl engine: per-domain breadth-first
// traversal, parser pipeline composition, deduplication, sequential-ID
// expansion, rate limiting, and two-tier persistence.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/prodspider/prodspider/internal/config"
	"github.com/prodspider/prodspider/internal/parser"
	"github.com/prodspider/prodspider/internal/urlutil"
	"github.com/prodspider/prodspider/pkg/plugin"
)

// ErrInvalidInput is returned for an empty domain list or non-positive depth.
var ErrInvalidInput = errors.New("invalid crawl input")

// shortCircuitAt stops running further parsers on a page once this many
// candidate URLs have been gathered.
const shortCircuitAt = 5

// expandAt is the per-page candidate count that triggers sequential expansion.
const expandAt = 3

// emptyBodyRetryDelay is the pause before re-fetching a listing-looking URL
// that returned an empty body.
const emptyBodyRetryDelay = 2 * time.Second

// categoryShapes rank next-depth URLs: listing-looking links are crawled
// before generic navigation.
var categoryShapes = []*regexp.Regexp{
	regexp.MustCompile(`/category/`),
	regexp.MustCompile(`/collection`),
	regexp.MustCompile(`/products?/`),
	regexp.MustCompile(`/shop/`),
	regexp.MustCompile(`/department/`),
	regexp.MustCompile(`/catalog/`),
	regexp.MustCompile(`/items?/`),
}

// Engine orchestrates the crawl: fetch, parse, expand, discover, persist.
type Engine struct {
	cfg       *config.Config
	httpFetch plugin.Fetcher
	browFetch plugin.Fetcher
	parsers   []plugin.Parser
	store     plugin.Storage
	writers   []plugin.OutputWriter
	log       zerolog.Logger

	retryDelay time.Duration
}

// Options wires the engine's collaborators. BrowserFetcher and Writers are
// optional.
type Options struct {
	HTTPFetcher    plugin.Fetcher
	BrowserFetcher plugin.Fetcher
	Parsers        []plugin.Parser
	Storage        plugin.Storage
	Writers        []plugin.OutputWriter
	Logger         zerolog.Logger
}

// New creates a crawl engine.
func New(cfg *config.Config, opts Options) *Engine {
	return &Engine{
		cfg:       cfg,
		httpFetch: opts.HTTPFetcher,
		browFetch: opts.BrowserFetcher,
		parsers:   opts.Parsers,
		store:     opts.Storage,
		writers:   opts.Writers,
		log:       opts.Logger.With().Str("component", "crawler").Logger(),

		retryDelay: emptyBodyRetryDelay,
	}
}

// ValidateInput checks a crawl request before any work starts.
func ValidateInput(domains []string, maxDepth int) error {
	if len(domains) == 0 {
		return fmt.Errorf("%w: domains must not be empty", ErrInvalidInput)
	}
	if maxDepth < 1 {
		return fmt.Errorf("%w: max_depth must be >= 1", ErrInvalidInput)
	}
	return nil
}

// Crawl runs the full task: one pipeline per seed domain, fanned out across
// a bounded worker pool, aggregated into the task report. A failing domain
// pipeline ends in status "error" without poisoning the others.
func (e *Engine) Crawl(ctx context.Context, taskID string, domains []string, maxDepth int, progress plugin.ProgressFunc) (*plugin.TaskReport, error) {
	if err := ValidateInput(domains, maxDepth); err != nil {
		return nil, err
	}
	start := time.Now()

	reports := make([]*plugin.DomainReport, len(domains))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.DomainWorkers)

	for i, seed := range domains {
		g.Go(func() error {
			reports[i] = e.crawlDomain(gctx, taskID, seed, maxDepth, progress)
			return nil
		})
	}
	_ = g.Wait()

	report := aggregate(taskID, domains, reports, time.Since(start))
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// crawlDomain runs one domain pipeline to completion. Never returns an
// error: failures are folded into the report status.
func (e *Engine) crawlDomain(ctx context.Context, taskID, seed string, maxDepth int, progress plugin.ProgressFunc) (report *plugin.DomainReport) {
	log := e.log.With().Str("task_id", taskID).Str("domain", seed).Logger()

	p, err := newPipeline(seed, parserNames(e.parsers))
	if err != nil {
		return &plugin.DomainReport{Domain: seed, Status: StatusError, Error: err.Error()}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("domain pipeline panicked")
			report = p.report(StatusError, fmt.Sprintf("pipeline panic: %v", r))
		}
	}()

	log.Info().Int("max_depth", maxDepth).Msg("starting crawl")

	// The seed joins the frontier in normalized form so an in-page link back
	// to the homepage dedupes against it.
	start := urlutil.Normalize(seed)
	if start == "" {
		start = seed
	}

	status := StatusCompleted
	frontier := []string{start}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		next := e.crawlDepth(ctx, p, frontier, depth)

		// Periodic persist: the frontier for this depth is drained.
		e.persist(ctx, taskID, p, log)

		emit(progress, plugin.ProgressEvent{
			Status:         StatusCrawling,
			Domain:         seed,
			Depth:          depth,
			DepthProgress:  fmt.Sprintf("%d/%d", depth, maxDepth),
			URLsDiscovered: p.productCount(),
		})

		if ctx.Err() != nil {
			status = StatusCancelled
			break
		}
		frontier = rankFrontier(next, e.cfg.MaxFrontier)
	}

	// Final persist is the recovery point, also on cancellation.
	e.persist(ctx, taskID, p, log)
	e.writeSideOutputs(p, log)

	report = p.report(status, "")
	log.Info().Int("urls", len(report.URLs)).Str("status", status).Msg("crawl finished")

	emit(progress, plugin.ProgressEvent{
		Status:         status,
		Domain:         seed,
		Depth:          maxDepth,
		DepthProgress:  "done",
		URLsDiscovered: len(report.URLs),
	})
	return report
}

// crawlDepth drains one depth of the frontier in batches of BatchSize
// concurrent fetches with a crawl-delay pause between batches, and returns
// the accumulated next-depth links.
func (e *Engine) crawlDepth(ctx context.Context, p *pipeline, frontier []string, depth int) []string {
	var (
		next   []string
		queued = make(map[string]bool)
	)
	collect := func(links []string) {
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, l := range links {
			if p.visited[l] || queued[l] {
				continue
			}
			queued[l] = true
			next = append(next, l)
		}
	}

	for start := 0; start < len(frontier); start += e.cfg.BatchSize {
		if ctx.Err() != nil {
			return next
		}
		if start > 0 {
			if err := sleepCtx(ctx, e.cfg.CrawlDelay); err != nil {
				return next
			}
		}

		end := min(start+e.cfg.BatchSize, len(frontier))
		var g errgroup.Group
		for _, pageURL := range frontier[start:end] {
			if !p.markVisited(pageURL) {
				continue
			}
			g.Go(func() error {
				e.processPage(ctx, p, pageURL, depth, collect)
				return nil
			})
		}
		_ = g.Wait()
	}
	return next
}

// processPage fetches one URL, runs the parser pipeline over it, expands
// sequential siblings, and collects next-depth links.
func (e *Engine) processPage(ctx context.Context, p *pipeline, pageURL string, depth int, collect func([]string)) {
	html := e.fetchPage(ctx, pageURL)
	if html == "" {
		return
	}

	// Parser order is the configured order; that is what makes first-finder
	// attribution deterministic. Parser failures mean zero results for that
	// parser on this page.
	candidates := make(map[string]bool)
	for _, prs := range e.parsers {
		if len(candidates) >= shortCircuitAt {
			break
		}
		urls, err := prs.Parse(ctx, html, pageURL)
		if err != nil {
			e.log.Warn().Str("parser", prs.Name()).Str("url", pageURL).Err(err).
				Msg("parser failed on page")
			continue
		}

		normalized := normalizeAll(urls)
		p.recordEmissions(prs.Name(), normalized)
		for _, u := range normalized {
			candidates[u] = true
		}
	}

	if len(candidates) >= expandAt {
		pageProducts := make([]string, 0, len(candidates))
		for u := range candidates {
			pageProducts = append(pageProducts, u)
		}
		if expanded := expandSequential(pageProducts); len(expanded) > 0 {
			p.recordEmissions(parser.NameSequential, normalizeAll(expanded))
		}
	}

	collect(normalizeAll(discoverLinks(html, pageURL, p.host)))
}

// fetchPage retrieves a page body. Listing-looking URLs that come back empty
// get one delayed retry; the browser fallback, when configured, is the last
// resort. Failures skip the URL, never abort the pipeline.
func (e *Engine) fetchPage(ctx context.Context, pageURL string) string {
	html := e.tryFetch(ctx, e.httpFetch, pageURL)

	if html == "" && looksLikeListing(pageURL) {
		if err := sleepCtx(ctx, e.retryDelay); err != nil {
			return ""
		}
		html = e.tryFetch(ctx, e.httpFetch, pageURL)
	}

	if html == "" && e.browFetch != nil && ctx.Err() == nil {
		html = e.tryFetch(ctx, e.browFetch, pageURL)
	}

	if html == "" {
		e.log.Warn().Str("url", pageURL).Msg("no HTML content, skipping URL")
	}
	return html
}

func (e *Engine) tryFetch(ctx context.Context, f plugin.Fetcher, pageURL string) string {
	if ctx.Err() != nil {
		return ""
	}
	page, err := f.Fetch(ctx, pageURL)
	if err != nil || page == nil {
		return ""
	}
	return page.HTML
}

// persist writes the accumulated product set to both storage tiers. Write
// failures are logged and recovered by the next persist.
func (e *Engine) persist(ctx context.Context, taskID string, p *pipeline, log zerolog.Logger) {
	urls := p.productURLs()
	if len(urls) == 0 {
		return
	}
	if err := e.store.SaveURLs(ctx, taskID, p.seed, urls); err != nil {
		log.Error().Int("urls", len(urls)).Err(err).Msg("storage write failed")
		return
	}
	log.Info().Int("urls", len(urls)).Msg("persisted product URLs")
}

func (e *Engine) writeSideOutputs(p *pipeline, log zerolog.Logger) {
	urls := p.productURLs()
	if len(urls) == 0 {
		return
	}
	for _, w := range e.writers {
		if err := w.WriteDomain(p.seed, urls); err != nil {
			log.Error().Str("writer", w.Name()).Err(err).Msg("side output failed")
		}
	}
}

// rankFrontier orders category-looking URLs first, keeps the original order
// otherwise, and truncates to maxLen.
func rankFrontier(urls []string, maxLen int) []string {
	var ranked, rest []string
	for _, u := range urls {
		if looksLikeCategory(u) {
			ranked = append(ranked, u)
		} else {
			rest = append(rest, u)
		}
	}
	ranked = append(ranked, rest...)
	if len(ranked) > maxLen {
		ranked = ranked[:maxLen]
	}
	return ranked
}

func looksLikeCategory(u string) bool {
	for _, re := range categoryShapes {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

func looksLikeListing(u string) bool {
	lower := strings.ToLower(u)
	return strings.Contains(lower, "product") ||
		strings.Contains(lower, "category") ||
		strings.Contains(lower, "collection")
}

// normalizeAll normalizes a URL list, dropping those that do not survive
// normalization.
func normalizeAll(urls []string) []string {
	out := urls[:0:0]
	for _, u := range urls {
		if n := urlutil.Normalize(u); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func parserNames(parsers []plugin.Parser) []string {
	names := make([]string, len(parsers))
	for i, p := range parsers {
		names[i] = p.Name()
	}
	return names
}

func emit(progress plugin.ProgressFunc, ev plugin.ProgressEvent) {
	if progress != nil {
		progress(ev)
	}
}

// aggregate merges the per-domain reports into the task report.
func aggregate(taskID string, domains []string, reports []*plugin.DomainReport, elapsed time.Duration) *plugin.TaskReport {
	out := &plugin.TaskReport{
		Status:       "completed",
		TaskID:       taskID,
		Duration:     fmt.Sprintf("%.2f seconds", elapsed.Seconds()),
		Domains:      domains,
		URLsCount:    make(map[string]int),
		ParserStats:  make(map[string]plugin.ParserStatsOut),
		URLsByParser: make(map[string]int),
	}

	union := make(map[string]map[string]bool)
	for _, r := range reports {
		if r == nil {
			continue
		}
		out.URLsCount[r.Domain] = len(r.URLs)
		out.TotalURLs += len(r.URLs)

		for name, st := range r.ParserStats {
			agg := out.ParserStats[name]
			agg.Total += st.Total
			agg.Unique += st.Unique
			out.ParserStats[name] = agg

			if union[name] == nil {
				union[name] = make(map[string]bool)
			}
			for host := range st.Domains {
				union[name][host] = true
			}
		}
		for name, n := range r.URLsByParser {
			out.URLsByParser[name] += n
		}
	}
	for name, hosts := range union {
		agg := out.ParserStats[name]
		agg.Domains = len(hosts)
		out.ParserStats[name] = agg
	}
	return out
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
