// internal/cache/ttl_cache.go
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ipscope/internal/metrics"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	payload   []byte
	expiresAt time.Time
}

// TTLCache is a bounded key/value store whose entries expire a fixed time after being written.
// Values are stored JSON-encoded, so every Get hands back an independent copy.
type TTLCache struct {
	name  string
	ttl   time.Duration
	now   func() time.Time
	store *lru.Cache
}

type Option func(*TTLCache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *TTLCache) {
		c.now = now
	}
}

// WithName labels the cache in metrics.
func WithName(name string) Option {
	return func(c *TTLCache) {
		c.name = name
	}
}

// New creates a cache holding at most size entries for ttl each; a non-positive ttl means DefaultTTL.
func New(ttl time.Duration, size int, opts ...Option) (*TTLCache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache store: %w", err)
	}

	c := &TTLCache{
		name:  "default",
		ttl:   ttl,
		now:   time.Now,
		store: store,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Get decodes the value stored under key into out. Expired entries are dropped and reported
// as a miss.
func (c *TTLCache) Get(key string, out any) bool {
	raw, ok := c.store.Get(key)
	if !ok {
		metrics.CacheResults.WithLabelValues(c.name, "miss").Inc()
		return false
	}

	e, ok := raw.(entry)
	if !ok {
		c.store.Remove(key)
		metrics.CacheResults.WithLabelValues(c.name, "miss_invalid").Inc()
		return false
	}

	if !c.now().Before(e.expiresAt) {
		c.store.Remove(key)
		metrics.CacheResults.WithLabelValues(c.name, "miss_expired").Inc()
		return false
	}

	if err := json.Unmarshal(e.payload, out); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"cache": c.name,
			"key":   key,
		}).Warn("Failed to decode cached value")
		c.store.Remove(key)
		metrics.CacheResults.WithLabelValues(c.name, "miss_invalid").Inc()
		return false
	}

	metrics.CacheResults.WithLabelValues(c.name, "hit").Inc()
	return true
}

// Set stores value under key, replacing any previous entry. Values that cannot be encoded are
// not cached.
func (c *TTLCache) Set(key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"cache": c.name,
			"key":   key,
		}).Warn("Failed to encode value for cache")
		return
	}

	c.store.Add(key, entry{payload: payload, expiresAt: c.now().Add(c.ttl)})
}

func (c *TTLCache) Delete(key string) {
	c.store.Remove(key)
}

func (c *TTLCache) Len() int {
	return c.store.Len()
}

func (c *TTLCache) TTL() time.Duration {
	return c.ttl
}
