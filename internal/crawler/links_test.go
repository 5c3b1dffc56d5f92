package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscoverLinksPaginationFirst(t *testing.T) {
	html := `<html><body>
		<a href="/about">About</a>
		<a href="/category/shoes">Shoes</a>
		<a href="/category/shoes?page=2">Next</a>
		<a href="/category/shoes?page=3">3</a>
	</body></html>`

	links := discoverLinks(html, "https://example.com", "example.com")

	assert.Equal(t, []string{
		"https://example.com/category/shoes?page=2",
		"https://example.com/category/shoes?page=3",
		"https://example.com/about",
		"https://example.com/category/shoes",
	}, links)
}

func TestDiscoverLinksFiltersExternalHosts(t *testing.T) {
	html := `<html><body>
		<a href="https://example.com/a">Internal</a>
		<a href="https://EXAMPLE.com/b">Internal upper</a>
		<a href="https://other.com/c">External</a>
		<a href="//cdn.example.net/d">Protocol relative external</a>
	</body></html>`

	links := discoverLinks(html, "https://example.com", "example.com")

	assert.Equal(t, []string{
		"https://example.com/a",
		"https://EXAMPLE.com/b",
	}, links)
}

func TestDiscoverLinksSkipsNonNavigable(t *testing.T) {
	html := `<html><body>
		<a href="#top">Top</a>
		<a href="javascript:void(0)">JS</a>
		<a href="mailto:hi@example.com">Mail</a>
		<a href="tel:+123">Call</a>
		<a href="/real">Real</a>
	</body></html>`

	links := discoverLinks(html, "https://example.com", "example.com")
	assert.Equal(t, []string{"https://example.com/real"}, links)
}

func TestDiscoverLinksDeduplicates(t *testing.T) {
	html := `<html><body>
		<a href="/a">One</a>
		<a href="/a">One again</a>
		<a href="/b?page=2">Next</a>
		<a href="/b?page=2">Next again</a>
	</body></html>`

	links := discoverLinks(html, "https://example.com", "example.com")
	assert.Equal(t, []string{
		"https://example.com/b?page=2",
		"https://example.com/a",
	}, links)
}

func TestIsPaginationText(t *testing.T) {
	assert.True(t, isPaginationText("Next"))
	assert.True(t, isPaginationText("  load more  "))
	assert.True(t, isPaginationText("2"))
	assert.True(t, isPaginationText("17"))
	assert.False(t, isPaginationText("Shoes"))
	assert.False(t, isPaginationText(""))
	assert.False(t, isPaginationText("2 items"))
}
