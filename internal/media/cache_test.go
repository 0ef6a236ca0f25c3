package media

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"media-relay/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls atomic.Int32
	info  Info
	err   error
}

func (p *countingProvider) Lookup(ctx context.Context, sourceURL string) (Info, error) {
	p.calls.Add(1)
	return p.info, p.err
}

func TestCachingProvider_hits(t *testing.T) {
	for _, compress := range []bool{false, true} {
		next := &countingProvider{info: Info{
			Title:    "Cached",
			Variants: []Variant{{Role: RoleAudioOnly, Quality: 128, URL: "https://cdn.example/a"}},
		}}
		c := NewCachingProvider(next, CacheOptions{TTL: time.Minute, Compress: compress}, logger.Discard())

		first, err := c.Lookup(context.Background(), "https://example.com/1")
		require.NoError(t, err)
		second, err := c.Lookup(context.Background(), "https://example.com/1")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), next.calls.Load(), "compress=%v", compress)

		_, err = c.Lookup(context.Background(), "https://example.com/2")
		require.NoError(t, err)
		assert.Equal(t, int32(2), next.calls.Load())
	}
}

func TestCachingProvider_does_not_cache_errors(t *testing.T) {
	next := &countingProvider{err: errors.New("boom")}
	c := NewCachingProvider(next, CacheOptions{}, logger.Discard())

	_, err := c.Lookup(context.Background(), "https://example.com/1")
	require.Error(t, err)
	_, err = c.Lookup(context.Background(), "https://example.com/1")
	require.Error(t, err)

	assert.Equal(t, int32(2), next.calls.Load())
}
