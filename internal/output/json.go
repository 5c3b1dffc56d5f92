// Package output writes per-domain URL dumps as side outputs of a crawl.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prodspider/prodspider/internal/urlutil"
	"github.com/prodspider/prodspider/pkg/plugin"
)

// filename builds the per-domain dump name, e.g.
// crawler_urls_example_com_20260825_153012.json.
func filename(domain, ext string) string {
	ts := time.Now().Format("20060102_150405")
	return fmt.Sprintf("crawler_urls_%s_%s.%s", urlutil.SimplifyDomain(domain), ts, ext)
}

// JSONWriter dumps a domain's URL list as a JSON document.
type JSONWriter struct {
	dir string
}

// NewJSONWriter creates a writer rooted at dir, creating it if needed.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &JSONWriter{dir: dir}, nil
}

func (w *JSONWriter) Name() string { return "json" }

type jsonDump struct {
	Domain    string    `json:"domain"`
	Count     int       `json:"count"`
	URLs      []string  `json:"urls"`
	Timestamp time.Time `json:"timestamp"`
}

func (w *JSONWriter) WriteDomain(domain string, urls []string) error {
	path := filepath.Join(w.dir, filename(domain, "json"))

	data, err := json.MarshalIndent(jsonDump{
		Domain:    domain,
		Count:     len(urls),
		URLs:      urls,
		Timestamp: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dump for %s: %w", domain, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

var _ plugin.OutputWriter = (*JSONWriter)(nil)
