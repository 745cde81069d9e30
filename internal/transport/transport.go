//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/transport.go -package=mocks . Transport

// Package transport is the pluggable capability adapters use to reach
// upstream feeds. A Transport turns a request descriptor into raw response
// bytes; nil bytes with a nil error mean the upstream returned nothing.
package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

// Request describes one upstream call.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   []byte

	// Cacheable marks immutable archive pages.
	Cacheable bool
}

// Get builds a GET request.
func Get(rawURL string, query url.Values) Request {
	return Request{Method: http.MethodGet, URL: rawURL, Query: query}
}

// FullURL returns the URL with the encoded query string appended.
func (r Request) FullURL() string {
	if len(r.Query) == 0 {
		return r.URL
	}
	return r.URL + "?" + r.Query.Encode()
}

// Key identifies the request for caching.
func (r Request) Key() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s %s\n", r.method(), r.FullURL())
	h.Write(r.Body)
	return hex.EncodeToString(h.Sum(nil))
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Transport fetches raw upstream payloads.
type Transport interface {
	Do(ctx context.Context, req Request) ([]byte, error)
}

// Func adapts a function to Transport.
type Func func(ctx context.Context, req Request) ([]byte, error)

func (f Func) Do(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
}

// Transient reports whether the response is worth retrying.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *StatusError) Is(target error) bool {
	return target == models.ErrTransientUpstream && e.Transient()
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	return errors.Is(err, models.ErrTransientUpstream)
}

// RetryAfter returns the delay an upstream asked for, if any.
func RetryAfter(err error) (time.Duration, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter, true
	}
	return 0, false
}
