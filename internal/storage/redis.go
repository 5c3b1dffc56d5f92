package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prodspider/prodspider/internal/urlutil"
)

// urlKeyPrefix namespaces the fast-store URL sets.
const urlKeyPrefix = "crawler_urls"

// statusKeyPrefix namespaces the task status mirror.
const statusKeyPrefix = "task_status"

// RedisStore is the fast tier: a set per (task, domain) with a sliding TTL
// refreshed on every write.
type RedisStore struct {
	client *redis.Client
	expire time.Duration
	log    zerolog.Logger
}

// RedisStoreConfig holds the fast-store connection settings.
type RedisStoreConfig struct {
	Addr     string
	Username string
	Password string
	Expire   time.Duration
}

// NewRedisStore connects to the fast store and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisStoreConfig, log zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisStore{
		client: client,
		expire: cfg.Expire,
		log:    log.With().Str("component", "redis_store").Logger(),
	}, nil
}

func urlKey(taskID, domain string) string {
	return fmt.Sprintf("%s:%s:%s", urlKeyPrefix, taskID, urlutil.SimplifyDomain(domain))
}

// SaveURLs adds urls to the (task, domain) set and refreshes its TTL. Safe
// to call repeatedly with overlapping sets.
func (s *RedisStore) SaveURLs(ctx context.Context, taskID, domain string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	key := urlKey(taskID, domain)

	members := make([]interface{}, len(urls))
	for i, u := range urls {
		members[i] = u
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, s.expire)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save %s: %w", key, err)
	}
	return nil
}

// URLs returns the members of the (task, domain) set. A missing key yields
// an empty slice, not an error.
func (s *RedisStore) URLs(ctx context.Context, taskID, domain string) ([]string, error) {
	key := urlKey(taskID, domain)
	urls, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis read %s: %w", key, err)
	}
	return urls, nil
}

// SetTaskStatus mirrors the task lifecycle state with the same TTL as the
// URL sets.
func (s *RedisStore) SetTaskStatus(ctx context.Context, taskID, status string) error {
	key := fmt.Sprintf("%s:%s", statusKeyPrefix, taskID)
	if err := s.client.Set(ctx, key, status, s.expire).Err(); err != nil {
		return fmt.Errorf("redis status %s: %w", key, err)
	}
	return nil
}

// Ping reports fast-store reachability for the health endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
