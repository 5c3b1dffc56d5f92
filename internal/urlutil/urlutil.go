// Package urlutil normalizes product URLs and derives the persistence key
// shared by the crawl engine and the storage layer.
package urlutil

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// trackingParams are query parameters stripped during normalization.
var trackingParams = map[string]bool{
	"ref":       true,
	"session":   true,
	"tracking":  true,
	"click":     true,
	"affiliate": true,
	"source":    true,
}

// Normalize canonicalizes a product URL: lower-cased host, no fragment,
// no trailing slash, no tracking query parameters. Returns "" for URLs
// that are not absolute http(s). Normalize is idempotent.
func Normalize(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = filterQuery(parsed.RawQuery)

	return parsed.String()
}

// filterQuery drops tracking parameters while preserving the order of the
// remaining pairs. url.Values would reorder them.
func filterQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.Index(pair, "="); i >= 0 {
			key = pair[:i]
		}
		key = strings.ToLower(key)
		if strings.HasPrefix(key, "utm_") || trackingParams[key] {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// Resolve joins a possibly relative href against base and returns the
// absolute form, or "" if the href cannot be parsed.
func Resolve(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// SimplifyDomain derives the persistence key for a seed URL: the registrable
// name plus public suffix with dots replaced by underscores
// ("https://www.Foo.Co.UK/x" -> "foo_co_uk"). Hosts without a public suffix
// (IPs, localhost) fall back to the bare host.
func SimplifyDomain(rawURL string) string {
	host := rawURL
	if parsed, err := url.Parse(rawURL); err == nil && parsed.Hostname() != "" {
		host = parsed.Hostname()
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		host = etld
	} else {
		host = strings.TrimPrefix(host, "www.")
	}

	return strings.ReplaceAll(host, ".", "_")
}
