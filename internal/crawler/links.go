package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// paginationTexts are anchor texts that signal a link to another page of the
// same listing. Bare digits ("2", "3", ...) count as well.
var paginationTexts = map[string]bool{
	"next":      true,
	"prev":      true,
	"previous":  true,
	"page":      true,
	"»":         true,
	"«":         true,
	">":         true,
	"<":         true,
	"load more": true,
	"show more": true,
}

// paginationHrefs are URL shapes that signal pagination.
var paginationHrefs = []*regexp.Regexp{
	regexp.MustCompile(`[?&]page=\d+`),
	regexp.MustCompile(`[?&]p=\d+`),
	regexp.MustCompile(`/page/\d+`),
	regexp.MustCompile(`/p/\d+$`),
	regexp.MustCompile(`-page-\d+`),
	regexp.MustCompile(`_p\d+`),
	regexp.MustCompile(`offset=\d+`),
	regexp.MustCompile(`start=\d+`),
	regexp.MustCompile(`from=\d+`),
}

// discoverLinks returns the internal links of a document: pagination links
// first, then the remaining navigation links, each group deduplicated in
// document order. hostFilter bounds the crawl to one site; links resolving
// to another host are dropped.
func discoverLinks(html, baseURL, hostFilter string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var pagination, navigation []string
	seenPag := make(map[string]bool)
	seenNav := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		trimmed := strings.TrimSpace(href)
		if strings.HasPrefix(trimmed, "#") ||
			strings.HasPrefix(trimmed, "javascript:") ||
			strings.HasPrefix(trimmed, "mailto:") ||
			strings.HasPrefix(trimmed, "tel:") {
			return
		}

		ref, err := url.Parse(trimmed)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if !strings.EqualFold(resolved.Hostname(), hostFilter) {
			return
		}
		full := resolved.String()

		if isPaginationText(s.Text()) || isPaginationHref(trimmed) {
			if !seenPag[full] {
				seenPag[full] = true
				pagination = append(pagination, full)
			}
			return
		}
		if !seenNav[full] {
			seenNav[full] = true
			navigation = append(navigation, full)
		}
	})

	links := pagination
	for _, l := range navigation {
		if !seenPag[l] {
			links = append(links, l)
		}
	}
	return links
}

func isPaginationText(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	if paginationTexts[t] {
		return true
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isPaginationHref(href string) bool {
	for _, re := range paginationHrefs {
		if re.MatchString(href) {
			return true
		}
	}
	return false
}
