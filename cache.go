package gatekeeper

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the abstract key-value store the replay-cache adapter and
// freshness window are built on. Implementations may be distributed
// (Redis, memcached, …) or in-process; the adapter tolerates errors from
// any of the three methods by downgrading to "not cached" on reads and
// treating write failures as non-fatal.
type Cache interface {
	ValueForKey(ctx context.Context, key string) (string, bool, error)
	SetValueForKey(ctx context.Context, key, value string, ttl time.Duration) error
	RemoveValueForKey(ctx context.Context, key string) error
}

// InMemoryCache is the library's zero-configuration default [Cache],
// backed by an in-process TTL-expiring map. It satisfies the replay-cache
// contract without requiring an external Redis/memcache deployment, so a
// single-process deployment needs nothing more to run standalone.
type InMemoryCache struct {
	store *gocache.Cache
}

// NewInMemoryCache builds an [InMemoryCache]. cleanupInterval controls how
// often expired entries are swept; pass 0 to use a reasonable default.
func NewInMemoryCache(cleanupInterval time.Duration) *InMemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &InMemoryCache{store: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// ValueForKey implements [Cache].
func (c *InMemoryCache) ValueForKey(_ context.Context, key string) (string, bool, error) {
	v, ok := c.store.Get(key)
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

// SetValueForKey implements [Cache].
func (c *InMemoryCache) SetValueForKey(_ context.Context, key, value string, ttl time.Duration) error {
	c.store.Set(key, value, ttl)
	return nil
}

// RemoveValueForKey implements [Cache].
func (c *InMemoryCache) RemoveValueForKey(_ context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

// replayCache wraps a [Cache] with (apiKey, signature) replay-detection
// semantics: a signature is rejected once it has already been observed for
// that API key, within the freshness window's TTL.
type replayCache struct {
	cache Cache
	ttl   time.Duration
}

func newReplayCache(cache Cache, ttl time.Duration) *replayCache {
	return &replayCache{cache: cache, ttl: ttl}
}

func replayKey(apiKey, signature string) string {
	return apiKey + signature
}

// seen reports whether (apiKey, signature) was already recorded. Cache
// errors degrade to "not seen" — the request proceeds to signature
// verification rather than failing closed on a cache outage.
func (r *replayCache) seen(ctx context.Context, apiKey, signature string) bool {
	value, ok, err := r.cache.ValueForKey(ctx, replayKey(apiKey, signature))
	if err != nil || !ok {
		return false
	}
	return value == signature
}

// record writes the replay entry after a successful signature verification.
// A write failure is never fatal to the request it belongs to.
func (r *replayCache) record(ctx context.Context, apiKey, signature string) {
	_ = r.cache.SetValueForKey(ctx, replayKey(apiKey, signature), signature, r.ttl)
}
