package adapter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

// RetryPolicy bounds retries of transient upstream failures.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetry allows three attempts with 250ms, 500ms backoff capped at 4s.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 4 * time.Second}
}

// Backoff returns the delay after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Fetch performs req, retrying transient failures. Any failure that survives
// the policy yields nil so one bad sub-request never fails the call.
func (b *Base) Fetch(ctx context.Context, req transport.Request) []byte {
	for attempt := 1; ; attempt++ {
		body, err := b.Transport.Do(ctx, req)
		if err == nil {
			return body
		}

		log := b.Logger.WithFields(logrus.Fields{
			"url":     req.URL,
			"attempt": attempt,
			"error":   err,
		})
		if ctx.Err() != nil {
			log.Debug("Sub-request cancelled")
			return nil
		}
		if !transport.IsTransient(err) {
			log.Warn("Upstream request failed, returning no data")
			return nil
		}
		if attempt >= b.Retry.Attempts {
			log.Warn("Retries exhausted, returning no data")
			return nil
		}

		delay := b.Retry.Backoff(attempt)
		if ra, ok := transport.RetryAfter(err); ok && ra > delay {
			delay = min(ra, b.Retry.MaxDelay)
		}
		log.WithField("delay", delay).Info("Retrying upstream request")
		b.Metrics.ObserveRetry(b.Authority.Code)
		if err := b.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
