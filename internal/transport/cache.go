package transport

// Archive pages for closed days never change upstream, so they are kept in an
// in-process LRU. Only requests marked Cacheable are stored.

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type cacheEntry struct {
	body   []byte
	stored time.Time
}

// Cached is a Transport that serves repeated cacheable requests from memory.
type Cached struct {
	next      Transport
	cache     *lru.Cache
	ttl       time.Duration
	now       func() time.Time
	authority string
	metrics   *Metrics
}

// NewCached wraps next with an LRU of the given size. A zero ttl keeps entries
// until evicted.
func NewCached(next Transport, size int, ttl time.Duration, authority string, metrics *Metrics) (*Cached, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cached{
		next:      next,
		cache:     c,
		ttl:       ttl,
		now:       time.Now,
		authority: authority,
		metrics:   metrics,
	}, nil
}

func (c *Cached) Do(ctx context.Context, req Request) ([]byte, error) {
	if !req.Cacheable {
		return c.next.Do(ctx, req)
	}
	key := req.Key()
	if v, ok := c.cache.Get(key); ok {
		entry := v.(cacheEntry)
		if c.ttl == 0 || c.now().Sub(entry.stored) < c.ttl {
			if c.metrics != nil {
				c.metrics.CacheHits.WithLabelValues(c.authority).Inc()
			}
			return append([]byte(nil), entry.body...), nil
		}
		c.cache.Remove(key)
	}

	body, err := c.next.Do(ctx, req)
	if err != nil || body == nil {
		return body, err
	}
	c.cache.Add(key, cacheEntry{body: append([]byte(nil), body...), stored: c.now()})
	return body, nil
}

// Len returns the number of cached pages.
func (c *Cached) Len() int {
	return c.cache.Len()
}
