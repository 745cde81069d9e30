package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
)

// Each runs fn for every item with at most b.Concurrency() in flight and
// concatenates the points. Errors from fn are logged and the item contributes
// nothing. Cancellation stops new work; results already collected are kept.
func Each[T any](ctx context.Context, b *Base, items []T, fn func(context.Context, T) ([]models.Point, error)) []models.Point {
	var (
		mu  sync.Mutex
		out []models.Point
		g   errgroup.Group
	)
	g.SetLimit(b.Concurrency())

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			points, err := fn(ctx, item)
			if err != nil {
				if errors.Is(err, models.ErrMalformedUpstream) {
					b.Logger.WithError(err).Warn("Skipping malformed sub-request")
				} else if ctx.Err() == nil {
					b.Logger.WithError(err).Warn("Sub-request failed")
				}
				return nil
			}
			mu.Lock()
			out = append(out, points...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Window is a half-open [Start, End) slice of a longer range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows splits [start, end] into consecutive windows of at most size. The
// final window ends exactly at end.
func Windows(start, end time.Time, size time.Duration) []Window {
	if size <= 0 || !start.Before(end) {
		return []Window{{Start: start, End: end}}
	}
	var out []Window
	for s := start; s.Before(end); s = s.Add(size) {
		e := s.Add(size)
		if e.After(end) {
			e = end
		}
		out = append(out, Window{Start: s, End: e})
	}
	return out
}

// Days lists the local calendar days in loc touched by [start, end], each as
// midnight UTC carrying the local date.
func Days(start, end time.Time, loc *time.Location) []time.Time {
	s, e := start.In(loc), end.In(loc)
	first := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
