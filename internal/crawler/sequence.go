package crawler

import (
	"math/rand"
	"regexp"
	"strconv"
)

const (
	// sequentialCap bounds the number of synthesized sibling URLs.
	sequentialCap = 30
	// sequentialSample bounds how many input URLs are inspected.
	sequentialSample = 10
	// sequentialSpread is how far sibling IDs reach on each side.
	sequentialSpread = 3
)

// sequenceShapes are the numeric patterns checked for sibling synthesis,
// in priority order. The first shape that matches any sampled URL is used
// for the whole batch.
var sequenceShapes = []*regexp.Regexp{
	regexp.MustCompile(`/(\d+)(?:/|$)`),
	regexp.MustCompile(`p=(\d+)`),
	regexp.MustCompile(`page=(\d+)`),
	regexp.MustCompile(`-p(\d+)`),
	regexp.MustCompile(`_(\d+)\.html`),
}

// expandSequential synthesizes ID-adjacent product URLs from the numeric
// patterns in the input set. Needs at least 3 input URLs; returns at most
// sequentialCap URLs, none of which appear in the input.
func expandSequential(productURLs []string) []string {
	if len(productURLs) < 3 {
		return nil
	}

	input := make(map[string]bool, len(productURLs))
	for _, u := range productURLs {
		input[u] = true
	}

	sampled := sampleURLs(productURLs, sequentialSample)

	shape := firstMatchingShape(sampled)
	if shape == nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, u := range sampled {
		loc := shape.FindStringSubmatchIndex(u)
		if loc == nil {
			continue
		}
		n, err := strconv.Atoi(u[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		for delta := 1; delta <= sequentialSpread; delta++ {
			for _, id := range []int{n - delta, n + delta} {
				if id < 1 {
					continue
				}
				sibling := u[:loc[2]] + strconv.Itoa(id) + u[loc[3]:]
				if input[sibling] || seen[sibling] {
					continue
				}
				seen[sibling] = true
				out = append(out, sibling)
				if len(out) >= sequentialCap {
					return out
				}
			}
		}
	}
	return out
}

// sampleURLs picks up to n URLs uniformly at random.
func sampleURLs(urls []string, n int) []string {
	if len(urls) <= n {
		return urls
	}
	sampled := make([]string, 0, n)
	for _, i := range rand.Perm(len(urls))[:n] {
		sampled = append(sampled, urls[i])
	}
	return sampled
}

func firstMatchingShape(urls []string) *regexp.Regexp {
	for _, shape := range sequenceShapes {
		for _, u := range urls {
			if shape.MatchString(u) {
				return shape
			}
		}
	}
	return nil
}
