// Package adapter holds the behaviour shared by every authority adapter:
// retried fetches that degrade to empty, bounded fan-out over nodes and
// archive pages, and the final clip, dedupe and sort of a result.
//
// Family packages embed Base and implement LMPGetter, LoadGetter or both.
// An adapter is built per client and never shared across clients.
package adapter

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/normalize"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

// LMPGetter is implemented by adapters that serve locational prices.
type LMPGetter interface {
	GetLMP(ctx context.Context, q options.Query) ([]models.Point, error)
}

// LoadGetter is implemented by adapters that serve load.
type LoadGetter interface {
	GetLoad(ctx context.Context, q options.Query) ([]models.Point, error)
}

// Deps are the collaborators a family constructor receives from the factory.
type Deps struct {
	Transport   transport.Transport
	Logger      logrus.FieldLogger
	Retry       RetryPolicy
	Concurrency int
	Metrics     *transport.Metrics
	// Credentials holds API keys by name, e.g. "eia" or "entsoe".
	Credentials map[string]string
}

// Base is embedded by every family adapter.
type Base struct {
	Authority  registry.Authority
	Transport  transport.Transport
	Normalizer *normalize.Normalizer
	Logger     logrus.FieldLogger
	Retry      RetryPolicy
	Metrics    *transport.Metrics

	concurrency int
	credentials map[string]string
	sleep       func(context.Context, time.Duration) error
}

// NewBase wires the shared behaviour for one authority.
func NewBase(a registry.Authority, d Deps) (Base, error) {
	if d.Transport == nil {
		return Base{}, errors.New("adapter: transport is required")
	}
	n, err := normalize.For(a)
	if err != nil {
		return Base{}, err
	}
	logger := d.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	retry := d.Retry
	if retry.Attempts <= 0 {
		retry = DefaultRetry()
	}
	concurrency := a.Concurrency()
	if d.Concurrency > 0 && d.Concurrency < concurrency {
		concurrency = d.Concurrency
	}
	return Base{
		Authority:   a,
		Transport:   d.Transport,
		Normalizer:  n,
		Logger:      logger.WithField("authority", a.Code),
		Retry:       retry,
		Metrics:     d.Metrics,
		concurrency: concurrency,
		credentials: d.Credentials,
		sleep:       sleepCtx,
	}, nil
}

// Concurrency is the ceiling on parallel sub-requests.
func (b *Base) Concurrency() int {
	return b.concurrency
}

// Credential returns a configured API key, or "".
func (b *Base) Credential(name string) string {
	return b.credentials[name]
}

// Points normalizes records, logging and skipping the malformed ones.
func (b *Base) Points(records []normalize.Record) []models.Point {
	out := make([]models.Point, 0, len(records))
	for _, rec := range records {
		p, err := b.Normalizer.Point(rec)
		if err != nil {
			b.Logger.WithError(err).Warn("Skipping malformed record")
			continue
		}
		out = append(out, p)
	}
	return out
}

// Malformed logs a window-level parse failure. The window contributes nothing.
func (b *Base) Malformed(req transport.Request, err error) {
	b.Logger.WithFields(logrus.Fields{
		"url":   req.URL,
		"error": err,
	}).Warn("Skipping malformed upstream window")
}
