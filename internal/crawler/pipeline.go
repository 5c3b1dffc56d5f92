package crawler

import (
	"net/url"
	"sort"
	"sync"

	"github.com/prodspider/prodspider/internal/parser"
	"github.com/prodspider/prodspider/internal/urlutil"
	"github.com/prodspider/prodspider/pkg/plugin"
)

// Domain pipeline status values.
const (
	StatusCrawling  = "crawling"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusError     = "error"
)

// pipeline holds the per-domain crawl state. Pages at one depth are
// processed concurrently, so every mutation goes through mu.
type pipeline struct {
	seed       string
	host       string
	simplified string

	mu          sync.Mutex
	visited     map[string]bool
	products    map[string]bool
	firstFinder map[string]string
	stats       map[string]*plugin.ParserStats
}

func newPipeline(seed string, parserNames []string) (*pipeline, error) {
	parsed, err := url.Parse(seed)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*plugin.ParserStats, len(parserNames)+1)
	for _, name := range parserNames {
		stats[name] = &plugin.ParserStats{Domains: make(map[string]bool)}
	}
	stats[parser.NameSequential] = &plugin.ParserStats{Domains: make(map[string]bool)}

	return &pipeline{
		seed:        seed,
		host:        parsed.Hostname(),
		simplified:  urlutil.SimplifyDomain(seed),
		visited:     make(map[string]bool),
		products:    make(map[string]bool),
		firstFinder: make(map[string]string),
		stats:       stats,
	}, nil
}

// markVisited reports whether the URL was new, marking it visited if so.
func (p *pipeline) markVisited(u string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.visited[u] {
		return false
	}
	p.visited[u] = true
	return true
}

// recordEmissions updates the stats for one parser's output on one page and
// inserts new product URLs, crediting the parser as first finder. First
// write wins: a URL already present keeps its original finder.
func (p *pipeline) recordEmissions(parserName string, urls []string) {
	if len(urls) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.stats[parserName]
	st.Total += len(urls)
	st.Domains[p.host] = true

	for _, u := range urls {
		if !p.products[u] {
			p.products[u] = true
			p.firstFinder[u] = parserName
		}
	}
}

func (p *pipeline) productCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.products)
}

// productURLs returns the discovered set sorted ascending.
func (p *pipeline) productURLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	urls := make([]string, 0, len(p.products))
	for u := range p.products {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// report builds the domain report, recomputing unique counts from the
// first-finder map.
func (p *pipeline) report(status, errMsg string) *plugin.DomainReport {
	urls := p.productURLs()

	p.mu.Lock()
	defer p.mu.Unlock()

	byParser := make(map[string]int, len(p.stats))
	for _, finder := range p.firstFinder {
		byParser[finder]++
	}
	for name, st := range p.stats {
		st.Unique = byParser[name]
	}

	return &plugin.DomainReport{
		Domain:           p.seed,
		SimplifiedDomain: p.simplified,
		Status:           status,
		URLs:             urls,
		ParserStats:      p.stats,
		URLsByParser:     byParser,
		Error:            errMsg,
	}
}
