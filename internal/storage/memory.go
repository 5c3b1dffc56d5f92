package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prodspider/prodspider/internal/urlutil"
	"github.com/prodspider/prodspider/pkg/plugin"
)

// MemoryStorage is an in-process plugin.Storage for tests and the CLI's
// storage-free mode. The fast tier can be expired by hand to exercise the
// durable fallback path.
type MemoryStorage struct {
	mu      sync.Mutex
	fast    map[string]map[string]bool
	durable map[string]*plugin.URLRecord
}

// NewMemoryStorage creates an empty in-process store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		fast:    make(map[string]map[string]bool),
		durable: make(map[string]*plugin.URLRecord),
	}
}

func memKey(taskID, domain string) string {
	return taskID + ":" + urlutil.SimplifyDomain(domain)
}

// SaveURLs merges urls into both in-memory tiers.
func (m *MemoryStorage) SaveURLs(_ context.Context, taskID, domain string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(taskID, domain)

	set := m.fast[key]
	if set == nil {
		set = make(map[string]bool)
		m.fast[key] = set
	}
	rec := m.durable[key]
	if rec == nil {
		rec = &plugin.URLRecord{}
		m.durable[key] = rec
	}

	existing := make(map[string]bool, len(rec.URLs))
	for _, u := range rec.URLs {
		existing[u] = true
	}
	for _, u := range urls {
		set[u] = true
		if !existing[u] {
			existing[u] = true
			rec.URLs = append(rec.URLs, u)
		}
	}
	sort.Strings(rec.URLs)
	rec.Timestamp = time.Now().UTC()
	return nil
}

// FastURLs returns the fast-tier set sorted ascending.
func (m *MemoryStorage) FastURLs(_ context.Context, taskID, domain string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.fast[memKey(taskID, domain)]
	urls := make([]string, 0, len(set))
	for u := range set {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

// DurableRecord returns a copy of the durable document, or nil if absent.
func (m *MemoryStorage) DurableRecord(_ context.Context, taskID, domain string) (*plugin.URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.durable[memKey(taskID, domain)]
	if rec == nil {
		return nil, nil
	}
	out := &plugin.URLRecord{URLs: append([]string(nil), rec.URLs...), Timestamp: rec.Timestamp}
	return out, nil
}

// ExpireFast drops the fast-tier set for (task, domain), simulating TTL
// expiry.
func (m *MemoryStorage) ExpireFast(taskID, domain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fast, memKey(taskID, domain))
}

var _ plugin.Storage = (*MemoryStorage)(nil)
