package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 500, cfg.MaxFrontier)
	assert.Equal(t, []string{"simple", "config", "ai"}, cfg.ParsersToUse)
	assert.Equal(t, 86400*time.Second, cfg.RedisExpire)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_CRAWL_DEPTH", "5")
	t.Setenv("CRAWL_DELAY", "0.5")
	t.Setenv("PARSERS_TO_USE", " Simple , CONFIG ")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")

	cfg := FromEnv()

	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, 500*time.Millisecond, cfg.CrawlDelay)
	assert.Equal(t, []string{"simple", "config"}, cfg.ParsersToUse)
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr())
}

func TestFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_CRAWL_DEPTH", "banana")
	t.Setenv("CRAWL_DELAY", "-2")

	cfg := FromEnv()

	assert.Equal(t, 3, cfg.MaxDepth)
	assert.Equal(t, 500*time.Millisecond, cfg.CrawlDelay)
}
