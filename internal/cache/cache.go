// Package cache keeps rendered list pages in Redis.
//
// Keys embed a per-resource generation number. Ingestion bumps the
// generation after each committed load, which orphans every cached page of
// that resource at once; orphans expire on their TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const prefix = "chatarchive"

var cacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "chatarchive",
	Subsystem: "cache",
	Name:      "requests_total",
	Help:      "Page cache lookups broken down by resource and hit/miss.",
}, []string{"resource", "result"})

// PageCache is a Redis-backed page cache. A nil *PageCache is valid and
// caches nothing.
type PageCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis at url. An empty url returns a nil cache.
func New(ctx context.Context, url string, ttl time.Duration, logger *zap.Logger) (*PageCache, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis page cache enabled", zap.String("addr", opt.Addr), zap.Duration("ttl", ttl))
	return NewWithClient(client, ttl, logger), nil
}

func NewWithClient(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *PageCache {
	return &PageCache{client: client, ttl: ttl, logger: logger}
}

// Client exposes the underlying connection for other Redis users such as
// the rate limiter. Nil when caching is disabled.
func (c *PageCache) Client() redis.UniversalClient {
	if c == nil {
		return nil
	}
	return c.client
}

func genKey(resource string) string {
	return fmt.Sprintf("%s:gen:%s", prefix, resource)
}

func pageKey(resource string, gen int64, key string) string {
	return fmt.Sprintf("%s:page:%s:%d:%s", prefix, resource, gen, key)
}

func (c *PageCache) generation(ctx context.Context, resource string) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(resource)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Slot is where a page belongs: the resource, the caller's key and the
// generation that was current when Get looked. A zero Slot stores nothing.
type Slot struct {
	Resource string
	Key      string
	Gen      int64
	valid    bool
}

// NewSlot binds key to generation gen of resource.
func NewSlot(resource, key string, gen int64) Slot {
	return Slot{Resource: resource, Key: key, Gen: gen, valid: true}
}

// Get loads the page cached under key into dst. Any Redis error counts as
// a miss. On a miss the returned Slot is what Set must be given, so a page
// read before a Bump is stored under the generation it was read at and is
// never served after it.
func (c *PageCache) Get(ctx context.Context, resource, key string, dst any) (Slot, bool) {
	if c == nil {
		return Slot{}, false
	}
	gen, err := c.generation(ctx, resource)
	if err != nil {
		c.logger.Warn("cache generation lookup failed", zap.String("resource", resource), zap.Error(err))
		return Slot{}, false
	}
	slot := NewSlot(resource, key, gen)

	data, err := c.client.Get(ctx, pageKey(resource, gen, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache get failed", zap.String("resource", resource), zap.Error(err))
		}
		cacheRequests.WithLabelValues(resource, "miss").Inc()
		return slot, false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("cache entry unreadable", zap.String("resource", resource), zap.Error(err))
		cacheRequests.WithLabelValues(resource, "miss").Inc()
		return slot, false
	}
	cacheRequests.WithLabelValues(resource, "hit").Inc()
	return slot, true
}

// Set stores v in slot for the cache TTL. Failures are logged, not
// returned: the cache is never required to serve a request.
func (c *PageCache) Set(ctx context.Context, slot Slot, v any) {
	if c == nil || !slot.valid {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("resource", slot.Resource), zap.Error(err))
		return
	}
	key := pageKey(slot.Resource, slot.Gen, slot.Key)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("resource", slot.Resource), zap.Error(err))
	}
}

// Bump invalidates every cached page of the given resources.
func (c *PageCache) Bump(ctx context.Context, resources ...string) error {
	if c == nil {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, r := range resources {
		pipe.Incr(ctx, genKey(r))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

func (c *PageCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
