package parser

import (
	"context"
	"net/url"
)

// DomainParser picks a shop-specific pattern list by the base URL's host,
// falling back to the default list when no entry matches.
type DomainParser struct {
	entries  []domainPatternEntry
	fallback []*urlPattern
}

// NewDomainParser creates the domain parser with the built-in pattern table.
func NewDomainParser() *DomainParser {
	return &DomainParser{entries: domainPatterns, fallback: defaultDomainPatterns}
}

func (p *DomainParser) Name() string { return NameConfig }

func (p *DomainParser) Parse(_ context.Context, html, baseURL string) ([]string, error) {
	return matchAnchors(html, baseURL, p.patternsFor(baseURL))
}

func (p *DomainParser) patternsFor(baseURL string) []*urlPattern {
	host := baseURL
	if parsed, err := url.Parse(baseURL); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	for _, entry := range p.entries {
		if entry.host.MatchString(host) {
			return entry.patterns
		}
	}
	return p.fallback
}
