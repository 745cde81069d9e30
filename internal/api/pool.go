package api

import (
	"strings"
	"sync"

	"github.com/tejusbharadwaj/gridfeed/internal/registry"
)

// Pool builds clients lazily and keeps one per authority, so every caller
// shares that authority's rate limiter and archive cache.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
	options func(registry.Authority) []ClientOption
}

// NewPool creates a pool. options returns the client options for one
// authority; it may be nil.
func NewPool(options func(registry.Authority) []ClientOption) *Pool {
	if options == nil {
		options = func(registry.Authority) []ClientOption { return nil }
	}
	return &Pool{
		clients: make(map[string]*Client),
		options: options,
	}
}

// Client returns the pooled client for code, building it on first use.
func (p *Pool) Client(code string) (*Client, error) {
	a, err := registry.Lookup(code)
	if err != nil {
		return nil, err
	}
	key := strings.ToUpper(a.Code)

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[key]; ok {
		return c, nil
	}
	c, err := NewClient(a.Code, p.options(a)...)
	if err != nil {
		return nil, err
	}
	p.clients[key] = c
	return c, nil
}
