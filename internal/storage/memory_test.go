package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageSaveIsIdempotent(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.SaveURLs(ctx, "t1", "https://example.com", []string{"https://example.com/p/1"}))
	require.NoError(t, s.SaveURLs(ctx, "t1", "https://example.com", []string{"https://example.com/p/1"}))

	urls, err := s.FastURLs(ctx, "t1", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/p/1"}, urls)
}

func TestMemoryStorageUnionMerge(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.SaveURLs(ctx, "t1", "https://example.com",
		[]string{"https://example.com/p/1", "https://example.com/p/2"}))
	require.NoError(t, s.SaveURLs(ctx, "t1", "https://example.com",
		[]string{"https://example.com/p/2", "https://example.com/p/3"}))

	rec, err := s.DurableRecord(ctx, "t1", "https://example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{
		"https://example.com/p/1",
		"https://example.com/p/2",
		"https://example.com/p/3",
	}, rec.URLs, "later saves must grow the set, never shrink it")
}

func TestMemoryStorageKeysBySimplifiedDomain(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.SaveURLs(ctx, "t1", "https://www.example.com", []string{"https://example.com/p/1"}))

	// subdomain variants of the same registrable domain share the key
	urls, err := s.FastURLs(ctx, "t1", "https://shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/p/1"}, urls)

	// other tasks and other domains stay separate
	urls, err = s.FastURLs(ctx, "t2", "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestMemoryStorageDurableSurvivesFastExpiry(t *testing.T) {
	s := NewMemoryStorage()
	ctx := context.Background()

	require.NoError(t, s.SaveURLs(ctx, "t1", "https://example.com", []string{"https://example.com/p/1"}))
	s.ExpireFast("t1", "https://example.com")

	urls, err := s.FastURLs(ctx, "t1", "https://example.com")
	require.NoError(t, err)
	assert.Empty(t, urls)

	rec, err := s.DurableRecord(ctx, "t1", "https://example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"https://example.com/p/1"}, rec.URLs)
}

func TestMemoryStorageMissingRecord(t *testing.T) {
	s := NewMemoryStorage()

	rec, err := s.DurableRecord(context.Background(), "nope", "https://example.com")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
