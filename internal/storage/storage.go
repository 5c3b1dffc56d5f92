// Package storage implements the two-tier product-URL store: a fast
// expiring Redis set in front of a durable MongoDB document per
// (task, domain) pair.
package storage

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/prodspider/prodspider/pkg/plugin"
)

// TwoTier writes to both tiers and reads fast-first. It satisfies
// plugin.Storage.
type TwoTier struct {
	fast    *RedisStore
	durable *MongoStore
	log     zerolog.Logger
}

// NewTwoTier combines the fast and durable tiers.
func NewTwoTier(fast *RedisStore, durable *MongoStore, log zerolog.Logger) *TwoTier {
	return &TwoTier{
		fast:    fast,
		durable: durable,
		log:     log.With().Str("component", "storage").Logger(),
	}
}

// SaveURLs writes to both tiers. A fast-tier failure is logged and
// tolerated; a durable-tier failure is the caller's problem.
func (t *TwoTier) SaveURLs(ctx context.Context, taskID, domain string, urls []string) error {
	if err := t.fast.SaveURLs(ctx, taskID, domain, urls); err != nil {
		t.log.Warn().Str("task_id", taskID).Str("domain", domain).Err(err).
			Msg("fast-tier write failed")
	}
	return t.durable.SaveURLs(ctx, taskID, domain, urls)
}

// FastURLs reads the expiring set.
func (t *TwoTier) FastURLs(ctx context.Context, taskID, domain string) ([]string, error) {
	return t.fast.URLs(ctx, taskID, domain)
}

// DurableRecord reads the durable document.
func (t *TwoTier) DurableRecord(ctx context.Context, taskID, domain string) (*plugin.URLRecord, error) {
	return t.durable.Record(ctx, taskID, domain)
}

var _ plugin.Storage = (*TwoTier)(nil)
