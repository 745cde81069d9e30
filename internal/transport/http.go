package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "gridfeed/1.0"
	maxBodyBytes     = 64 << 20
)

// HTTPConfig tunes an HTTPTransport.
type HTTPConfig struct {
	Timeout time.Duration
	// RateLimit is the request ceiling per second; zero disables limiting.
	RateLimit float64
	Burst     int
	UserAgent string
	Header    http.Header
}

// HTTPTransport is the production Transport. One instance serves one
// authority so the limiter is never shared across authorities.
type HTTPTransport struct {
	authority string
	client    *http.Client
	limiter   *rate.Limiter
	cfg       HTTPConfig
	logger    logrus.FieldLogger
	metrics   *Metrics
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithHTTPClient replaces the underlying client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client = c }
}

// WithLogger sets the request logger.
func WithLogger(l logrus.FieldLogger) HTTPOption {
	return func(t *HTTPTransport) { t.logger = l }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *Metrics) HTTPOption {
	return func(t *HTTPTransport) { t.metrics = m }
}

// NewHTTP creates an HTTPTransport for one authority.
func NewHTTP(authority string, cfg HTTPConfig, opts ...HTTPOption) *HTTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	t := &HTTPTransport{
		authority: authority,
		client:    &http.Client{Timeout: cfg.Timeout},
		cfg:       cfg,
		logger:    discard(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Do performs the request. Network failures and 429/5xx responses are wrapped
// as models.ErrTransientUpstream; 204 and empty bodies return nil.
func (t *HTTPTransport) Do(ctx context.Context, req Request) ([]byte, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method(), req.FullURL(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range t.cfg.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", t.cfg.UserAgent)

	log := t.logger.WithFields(logrus.Fields{
		"authority": t.authority,
		"method":    httpReq.Method,
		"url":       req.URL,
	})
	log.Debug("Upstream request")

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		t.observe("error", elapsed)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTransientUpstream, err)
	}
	defer resp.Body.Close()
	t.observe(strconv.Itoa(resp.StatusCode), elapsed)

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", models.ErrTransientUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			URL:        req.URL,
			Body:       truncate(string(payload), 512),
		}
		log.WithFields(logrus.Fields{
			"status":   resp.StatusCode,
			"duration": elapsed,
		}).Warn("Upstream returned error status")
		return nil, se
	}

	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"bytes":    len(payload),
		"duration": elapsed,
	}).Debug("Upstream response")

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(payload)) == 0 {
		return nil, nil
	}
	return payload, nil
}

func (t *HTTPTransport) observe(status string, elapsed time.Duration) {
	if t.metrics == nil {
		return
	}
	t.metrics.Requests.WithLabelValues(t.authority, status).Inc()
	t.metrics.Latency.WithLabelValues(t.authority).Observe(elapsed.Seconds())
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
