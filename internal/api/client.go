// Package api is the public entry point: it builds a client for one grid
// authority and runs LMP and load queries through that authority's adapter.
package api

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

const (
	defaultCallTimeout = 2 * time.Minute
	defaultCacheSize   = 256
	defaultCacheTTL    = 6 * time.Hour
)

// Client queries one authority. It is safe for concurrent use; every call
// builds its own adapter over the client's transport.
type Client struct {
	authority   registry.Authority
	transport   transport.Transport
	logger      logrus.FieldLogger
	now         func() time.Time
	retry       adapter.RetryPolicy
	timeout     time.Duration
	concurrency int
	metrics     *transport.Metrics
	credentials map[string]string

	httpCfg   transport.HTTPConfig
	cacheSize int
	cacheTTL  time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTransport replaces the HTTP transport, e.g. with a canned test double.
func WithTransport(t transport.Transport) ClientOption {
	return func(c *Client) { c.transport = t }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithClock sets the reference clock used to resolve queries.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// WithRetry sets the retry policy for transient upstream failures.
func WithRetry(p adapter.RetryPolicy) ClientOption {
	return func(c *Client) { c.retry = p }
}

// WithTimeout bounds a whole call. Sub-requests still running at the deadline
// are cancelled and whatever completed is returned.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithConcurrency lowers the authority's sub-request ceiling.
func WithConcurrency(n int) ClientOption {
	return func(c *Client) { c.concurrency = n }
}

// WithMetrics records upstream traffic on m.
func WithMetrics(m *transport.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithCredentials supplies API keys by name ("eia", "entsoe", "isone").
func WithCredentials(creds map[string]string) ClientOption {
	return func(c *Client) { c.credentials = creds }
}

// WithHTTPConfig tunes the default HTTP transport. Ignored with WithTransport.
func WithHTTPConfig(cfg transport.HTTPConfig) ClientOption {
	return func(c *Client) { c.httpCfg = cfg }
}

// WithArchiveCache sizes the in-memory cache of closed archive pages. A
// non-positive ttl keeps the default of six hours.
func WithArchiveCache(size int, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cacheSize = size
		c.cacheTTL = ttl
	}
}

// NewClient builds a client for the authority code. It performs no I/O.
func NewClient(code string, opts ...ClientOption) (*Client, error) {
	a, err := registry.Lookup(code)
	if err != nil {
		return nil, err
	}
	c := &Client{
		authority: a,
		now:       time.Now,
		retry:     adapter.DefaultRetry(),
		timeout:   defaultCallTimeout,
		cacheSize: defaultCacheSize,
		cacheTTL:  defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.logger = l
	}
	if c.transport == nil {
		httpT := transport.NewHTTP(a.Code, c.httpCfg,
			transport.WithLogger(c.logger),
			transport.WithMetrics(c.metrics),
		)
		if c.cacheSize <= 0 {
			c.cacheSize = defaultCacheSize
		}
		if c.cacheTTL <= 0 {
			c.cacheTTL = defaultCacheTTL
		}
		cached, err := transport.NewCached(httpT, c.cacheSize, c.cacheTTL, a.Code, c.metrics)
		if err != nil {
			return nil, fmt.Errorf("archive cache: %w", err)
		}
		c.transport = cached
	}
	return c, nil
}

// Authority returns the descriptor the client was built for.
func (c *Client) Authority() registry.Authority {
	return c.authority
}

// GetLMP returns locational marginal prices.
func (c *Client) GetLMP(ctx context.Context, opts ...options.Option) ([]models.Point, error) {
	o, err := options.New(opts...)
	if err != nil {
		return nil, err
	}
	return c.GetLMPWith(ctx, o)
}

// GetLoad returns load.
func (c *Client) GetLoad(ctx context.Context, opts ...options.Option) ([]models.Point, error) {
	o, err := options.New(opts...)
	if err != nil {
		return nil, err
	}
	return c.GetLoadWith(ctx, o)
}

// GetLMPWith runs an LMP query from pre-built options.
func (c *Client) GetLMPWith(ctx context.Context, o options.Options) ([]models.Point, error) {
	return c.run(ctx, models.DataTypeLMP, o, func(ctx context.Context, ad any, q options.Query) ([]models.Point, error) {
		g, ok := ad.(adapter.LMPGetter)
		if !ok {
			return nil, c.unsupported(models.DataTypeLMP, "adapter does not serve prices")
		}
		return g.GetLMP(ctx, q)
	})
}

// GetLoadWith runs a load query from pre-built options.
func (c *Client) GetLoadWith(ctx context.Context, o options.Options) ([]models.Point, error) {
	return c.run(ctx, models.DataTypeLoad, o, func(ctx context.Context, ad any, q options.Query) ([]models.Point, error) {
		g, ok := ad.(adapter.LoadGetter)
		if !ok {
			return nil, c.unsupported(models.DataTypeLoad, "adapter does not serve load")
		}
		return g.GetLoad(ctx, q)
	})
}

type getter func(ctx context.Context, ad any, q options.Query) ([]models.Point, error)

func (c *Client) run(ctx context.Context, dt models.DataType, o options.Options, get getter) ([]models.Point, error) {
	if !c.authority.Supports(dt) {
		return nil, c.unsupported(dt, fmt.Sprintf("%s does not publish %s", c.authority.Code, dt))
	}
	q, err := o.Resolve(c.now().UTC())
	if err != nil {
		return nil, err
	}
	if c.authority.RequiresNodes && q.Unfiltered() {
		return nil, &models.ValidationError{Field: "node_id", Reason: c.authority.Code + " requires at least one node id"}
	}
	q = q.WithDefaultWindow(c.authority.DefaultWindow)

	log := c.logger.WithFields(logrus.Fields{
		"call_id":   uuid.NewString(),
		"authority": c.authority.Code,
		"data_type": dt,
		"mode":      q.Mode.String(),
	})
	ad, err := newAdapter(c.authority, adapter.Deps{
		Transport:   c.transport,
		Logger:      log,
		Retry:       c.retry,
		Concurrency: c.concurrency,
		Metrics:     c.metrics,
		Credentials: c.credentials,
	})
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	points, err := get(ctx, ad, q)
	if err != nil {
		log.WithError(err).Debug("Query rejected")
		return nil, err
	}
	if points == nil {
		points = []models.Point{}
	}
	log.WithFields(logrus.Fields{
		"points":   len(points),
		"duration": time.Since(start),
	}).Info("Query complete")
	return points, nil
}

func (c *Client) unsupported(dt models.DataType, reason string) error {
	return &models.UnsupportedQueryError{Authority: c.authority.Code, DataType: dt, Reason: reason}
}

// ListAuthorities returns the authorities serving dt, or all of them when dt
// is empty, sorted by code.
func ListAuthorities(dt models.DataType) []registry.Authority {
	return registry.ListAuthorities(dt)
}
