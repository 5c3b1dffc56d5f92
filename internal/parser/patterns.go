package parser

import "regexp"

// urlPattern is a compiled product-URL shape.
type urlPattern struct {
	re *regexp.Regexp
}

func compileAll(exprs []string) []*urlPattern {
	patterns := make([]*urlPattern, 0, len(exprs))
	for _, expr := range exprs {
		patterns = append(patterns, &urlPattern{re: regexp.MustCompile(expr)})
	}
	return patterns
}

// productPatterns covers ten common e-commerce URL shapes.
var productPatterns = compileAll([]string{
	`/product/\d+`,                       // generic product page
	`/item/\d+`,                          // item page
	`/p/\d+`,                             // product shortcut
	`/products/[a-zA-Z0-9-]+`,            // slug-based products
	`/shop/[a-zA-Z0-9-]+`,                // shop section
	`/store/[^/]+/product/[a-zA-Z0-9-]+`, // store-specific products
	`/category/[^/]+/[^/]+`,              // category-based products
	`/detail/[a-zA-Z0-9-]+`,              // detail pages
	`/product(?:-[a-zA-Z0-9]+)+`,         // hyphen-separated product IDs
	`/products/[0-9]+`,                   // numeric product pages
})

// domainPatternEntry maps a host-matching expression to the pattern list
// used for that shop. Entries are checked in order; the first whose host
// expression matches the base URL's host wins.
type domainPatternEntry struct {
	host     *regexp.Regexp
	patterns []*urlPattern
}

var domainPatterns = []domainPatternEntry{
	{
		host:     regexp.MustCompile(`virgio\.com`),
		patterns: compileAll([]string{`/product/\d+`, `/products/\d+`, `/item/\w+`, `/p/\d+`}),
	},
	{
		host:     regexp.MustCompile(`tatacliq\.com`),
		patterns: compileAll([]string{`/product/.*`, `/products/\d+`, `/pdp/.*`}),
	},
	{
		host:     regexp.MustCompile(`nykaafashion\.com`),
		patterns: compileAll([]string{`/products/.*`, `/p/.*`}),
	},
	{
		host:     regexp.MustCompile(`westside\.com`),
		patterns: compileAll([]string{`/shop/.*`, `/products/.*`}),
	},
}

// defaultDomainPatterns extends the global shapes with product-detail
// variants seen across smaller shops.
var defaultDomainPatterns = append(productPatterns, compileAll([]string{
	`/product-detail/\d+`,
	`/pd/\d+`,
	`/item-detail/\d+`,
	`/catalog/product/view/id/\d+`,
	`/product/view/id/\d+`,
	`/productdetails/\d+`,
})...)
