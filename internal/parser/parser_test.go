package parser

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodspider/prodspider/internal/config"
)

func TestPatternParserFindsProductLinks(t *testing.T) {
	html := `<html><body>
		<a href="/product/123">A product</a>
		<a href="/item/456">An item</a>
		<a href="https://example.com/p/789">Shortcut</a>
		<a href="/about">About us</a>
		<a href="/contact">Contact</a>
	</body></html>`

	p := NewPatternParser()
	urls, err := p.Parse(context.Background(), html, "https://example.com")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"https://example.com/product/123",
		"https://example.com/item/456",
		"https://example.com/p/789",
	}, urls)
}

func TestPatternParserResolvesRelativeAndStripsTrailingSlash(t *testing.T) {
	html := `<a href="/products/red-shoes/">Red shoes</a>`

	p := NewPatternParser()
	urls, err := p.Parse(context.Background(), html, "https://shop.example.com/category/shoes")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://shop.example.com/products/red-shoes"}, urls)
}

func TestPatternParserSortedAndDeduplicated(t *testing.T) {
	html := `<html><body>
		<a href="/product/2">B</a>
		<a href="/product/1">A</a>
		<a href="/product/2">B again</a>
	</body></html>`

	p := NewPatternParser()
	urls, err := p.Parse(context.Background(), html, "https://example.com")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/product/1",
		"https://example.com/product/2",
	}, urls)
}

func TestDomainParserPicksHostSpecificPatterns(t *testing.T) {
	p := NewDomainParser()

	// tatacliq has a /pdp/ shape that is not in the default table
	html := `<a href="/pdp/some-shirt-p-mp000123">Shirt</a><a href="/about">About</a>`
	urls, err := p.Parse(context.Background(), html, "https://www.tatacliq.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.tatacliq.com/pdp/some-shirt-p-mp000123"}, urls)

	// unknown host falls back to the default table
	html = `<a href="/product-detail/42">Detail</a>`
	urls, err = p.Parse(context.Background(), html, "https://unknown-shop.example")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://unknown-shop.example/product-detail/42"}, urls)
}

func TestDomainParserFallbackDoesNotMatchPdp(t *testing.T) {
	p := NewDomainParser()

	html := `<a href="/pdp/some-shirt">Shirt</a>`
	urls, err := p.Parse(context.Background(), html, "https://unknown-shop.example")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestFromConfigBuildsPipelineInOrder(t *testing.T) {
	cfg := config.Default()
	cfg.ParsersToUse = []string{"config", "simple"}

	parsers, err := FromConfig(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, parsers, 2)
	assert.Equal(t, NameConfig, parsers[0].Name())
	assert.Equal(t, NameSimple, parsers[1].Name())
}

func TestFromConfigSkipsAIWithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.ParsersToUse = []string{"simple", "ai"}
	cfg.AIAPIKey = ""

	parsers, err := FromConfig(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, parsers, 1)
	assert.Equal(t, NameSimple, parsers[0].Name())
}

func TestFromConfigRejectsUnknownParser(t *testing.T) {
	cfg := config.Default()
	cfg.ParsersToUse = []string{"simple", "bogus"}

	_, err := FromConfig(cfg, zerolog.Nop())
	assert.Error(t, err)
}
