// Package parser extracts candidate product URLs from HTML documents.
// Three parsers share the contract: given a document and its base URL,
// return an ordered list of unique absolute URLs.
package parser

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/prodspider/prodspider/internal/config"
	"github.com/prodspider/prodspider/pkg/plugin"
)

// Parser names. The configured order of these names decides first-finder
// attribution in the engine.
const (
	NameSimple     = "simple"
	NameConfig     = "config"
	NameAI         = "ai"
	NameSequential = "sequential"
)

// FromConfig builds the parser pipeline in the configured order. Unknown
// names are an error; the AI parser is skipped with a warning when no API
// key is configured.
func FromConfig(cfg *config.Config, log zerolog.Logger) ([]plugin.Parser, error) {
	var parsers []plugin.Parser
	for _, name := range cfg.ParsersToUse {
		switch name {
		case NameSimple:
			parsers = append(parsers, NewPatternParser())
		case NameConfig:
			parsers = append(parsers, NewDomainParser())
		case NameAI:
			if cfg.AIAPIKey == "" {
				log.Warn().Msg("ai parser requested but no API key configured, skipping")
				continue
			}
			parsers = append(parsers, NewAIParser(AIParserConfig{
				APIKey:  cfg.AIAPIKey,
				Model:   cfg.AIModel,
				BaseURL: cfg.AIBaseURL,
				Timeout: cfg.AITimeout,
			}, log))
		default:
			return nil, fmt.Errorf("unknown parser %q", name)
		}
	}
	if len(parsers) == 0 {
		return nil, fmt.Errorf("no parsers configured")
	}
	return parsers, nil
}

// matchAnchors walks every <a href> in html, resolves hrefs against baseURL,
// and collects those whose href matches any pattern. Trailing slashes are
// stripped; the result is sorted ascending.
func matchAnchors(html, baseURL string, patterns []*urlPattern) ([]string, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no patterns provided")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	found := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		for _, p := range patterns {
			if p.re.MatchString(href) {
				ref, err := url.Parse(strings.TrimSpace(href))
				if err != nil {
					return
				}
				full := base.ResolveReference(ref).String()
				found[strings.TrimRight(full, "/")] = true
				return
			}
		}
	})

	links := make([]string, 0, len(found))
	for link := range found {
		links = append(links, link)
	}
	sort.Strings(links)
	return links, nil
}
