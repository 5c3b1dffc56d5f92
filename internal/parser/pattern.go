package parser

import "context"

// PatternParser matches anchors against a global list of product-URL shapes.
type PatternParser struct {
	patterns []*urlPattern
}

// NewPatternParser creates the pattern parser with the built-in shapes.
func NewPatternParser() *PatternParser {
	return &PatternParser{patterns: productPatterns}
}

func (p *PatternParser) Name() string { return NameSimple }

func (p *PatternParser) Parse(_ context.Context, html, baseURL string) ([]string, error) {
	return matchAnchors(html, baseURL, p.patterns)
}
