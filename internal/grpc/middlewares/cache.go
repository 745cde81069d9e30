package middleware

// Responses are cached in process with golang-lru, which evicts the least
// recently used entries once the cache is full.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

type cachedResponse struct {
	resp   interface{}
	stored time.Time
}

// Cache memoizes successful unary responses for a fixed lifetime.
type Cache struct {
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

// NewCache sets up an in-memory LRU cache. A zero ttl keeps entries until
// they are evicted.
func NewCache(size int, ttl time.Duration) (*Cache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c, ttl: ttl, now: time.Now}, nil
}

// Interceptor caches responses of the listed methods only. Other methods pass
// straight through.
func (c *Cache) Interceptor(methods ...string) grpc.UnaryServerInterceptor {
	cacheable := make(map[string]bool, len(methods))
	for _, m := range methods {
		cacheable[m] = true
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !cacheable[info.FullMethod] {
			return handler(ctx, req)
		}

		key, err := generateCacheKey(info.FullMethod, req)
		if err != nil {
			return handler(ctx, req)
		}
		if v, ok := c.lru.Get(key); ok {
			entry := v.(cachedResponse)
			if c.ttl == 0 || c.now().Sub(entry.stored) < c.ttl {
				return entry.resp, nil
			}
			c.lru.Remove(key)
		}

		resp, err := handler(ctx, req)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, cachedResponse{resp: resp, stored: c.now()})
		return resp, nil
	}
}

// generateCacheKey derives a key from the method and the request. Protobuf
// requests use deterministic wire encoding so map order does not matter.
func generateCacheKey(method string, req interface{}) (string, error) {
	var reqBytes []byte
	var err error
	if m, ok := req.(proto.Message); ok {
		reqBytes, err = proto.MarshalOptions{Deterministic: true}.Marshal(m)
	} else {
		reqBytes, err = json.Marshal(req)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%x", method, reqBytes), nil
}
