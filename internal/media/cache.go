package media

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coocood/freecache"
	gocache "github.com/eko/gocache/lib/v4/cache"
	libstore "github.com/eko/gocache/lib/v4/store"
	gocachefreecache "github.com/eko/gocache/store/freecache/v4"
	"github.com/golang/snappy"
)

const (
	defaultCacheBytes = 64 * 1024 * 1024
	defaultCacheTTL   = 5 * time.Minute
)

// CacheOptions configures a CachingProvider.
type CacheOptions struct {
	// SizeBytes is the freecache arena size. A single entry may use at most
	// 1/1024 of it.
	SizeBytes int
	TTL       time.Duration
	// Compress stores entries snappy-compressed.
	Compress bool
}

// CachingProvider remembers lookups of another provider for a TTL. Direct
// media URLs handed out by providers expire, so the TTL should stay well
// below their lifetime.
type CachingProvider struct {
	next     Provider
	cache    gocache.CacheInterface[[]byte]
	ttl      time.Duration
	compress bool
	log      *slog.Logger
}

// NewCachingProvider wraps next with an in-memory cache.
func NewCachingProvider(next Provider, opts CacheOptions, log *slog.Logger) *CachingProvider {
	if opts.SizeBytes <= 0 {
		opts.SizeBytes = defaultCacheBytes
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultCacheTTL
	}
	store := gocachefreecache.NewFreecache(freecache.NewCache(opts.SizeBytes))
	return &CachingProvider{
		next:     next,
		cache:    gocache.New[[]byte](store),
		ttl:      opts.TTL,
		compress: opts.Compress,
		log:      log,
	}
}

// Lookup implements Provider. Failed lookups are not cached.
func (c *CachingProvider) Lookup(ctx context.Context, sourceURL string) (Info, error) {
	key := cacheKey(sourceURL)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		if info, ok := c.decode(raw); ok {
			return info, nil
		}
	}

	info, err := c.next.Lookup(ctx, sourceURL)
	if err != nil {
		return Info{}, err
	}

	if raw, ok := c.encode(info); ok {
		if err := c.cache.Set(ctx, key, raw, libstore.WithExpiration(c.ttl)); err != nil {
			c.log.Debug("info cache set failed", slog.String("error", err.Error()), slog.Int("bytes", len(raw)))
		}
	}
	return info, nil
}

func cacheKey(sourceURL string) string {
	return "info:" + sourceURL
}

func (c *CachingProvider) encode(info Info) ([]byte, bool) {
	raw, err := json.Marshal(info)
	if err != nil {
		c.log.Debug("info cache encode failed", slog.String("error", err.Error()))
		return nil, false
	}
	if c.compress {
		raw = snappy.Encode(nil, raw)
	}
	return raw, true
}

func (c *CachingProvider) decode(raw []byte) (Info, bool) {
	if c.compress {
		decoded, err := snappy.Decode(nil, raw)
		if err != nil {
			c.log.Debug("info cache decode failed", slog.String("error", err.Error()))
			return Info{}, false
		}
		raw = decoded
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		c.log.Debug("info cache decode failed", slog.String("error", err.Error()))
		return Info{}, false
	}
	return info, true
}
