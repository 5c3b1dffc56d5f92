package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prodspider/prodspider/pkg/plugin"
)

// CSVWriter dumps a domain's URL list as a single-column CSV file.
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates a writer rooted at dir, creating it if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &CSVWriter{dir: dir}, nil
}

func (w *CSVWriter) Name() string { return "csv" }

func (w *CSVWriter) WriteDomain(domain string, urls []string) error {
	path := filepath.Join(w.dir, filename(domain, "csv"))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"URL"}); err != nil {
		return fmt.Errorf("write header %s: %w", path, err)
	}
	for _, u := range urls {
		if err := cw.Write([]string{u}); err != nil {
			return fmt.Errorf("write row %s: %w", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

var _ plugin.OutputWriter = (*CSVWriter)(nil)
