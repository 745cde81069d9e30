package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/gridfeed/internal/database"
	"github.com/tejusbharadwaj/gridfeed/internal/models"
	"github.com/tejusbharadwaj/gridfeed/internal/options"
)

var (
	ErrCollect = errors.New("error collecting points")
	ErrStore   = errors.New("error storing points")
)

// Target is one authority the collector archives, optionally restricted to
// a node list.
type Target struct {
	Client *Client
	Nodes  []string
}

// Collector pulls points through clients and archives them.
type Collector struct {
	targets []Target
	repo    database.PointRepository
	logger  logrus.FieldLogger
	now     func() time.Time
}

// NewCollector creates a collector writing to repo.
func NewCollector(repo database.PointRepository, logger logrus.FieldLogger, targets ...Target) *Collector {
	return &Collector{
		targets: targets,
		repo:    repo,
		logger:  logger,
		now:     time.Now,
	}
}

// Collect archives every supported data type of every target over
// [start, end]. One failing target does not stop the others; their errors are
// joined.
func (c *Collector) Collect(ctx context.Context, start, end time.Time) error {
	var errs []error
	for _, t := range c.targets {
		for _, dt := range t.Client.Authority().DataTypes {
			if err := c.collect(ctx, t, dt, start, end); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Collector) collect(ctx context.Context, t Target, dt models.DataType, start, end time.Time) error {
	code := t.Client.Authority().Code
	log := c.logger.WithFields(logrus.Fields{
		"authority": code,
		"data_type": dt,
		"start":     start,
		"end":       end,
	})

	opts := []options.Option{options.WithRange(start, end)}
	if len(t.Nodes) > 0 {
		opts = append(opts, options.WithNodes(t.Nodes...))
	}
	var (
		points []models.Point
		err    error
	)
	switch dt {
	case models.DataTypeLMP:
		points, err = t.Client.GetLMP(ctx, opts...)
	case models.DataTypeLoad:
		points, err = t.Client.GetLoad(ctx, opts...)
	}
	if errors.Is(err, models.ErrUnsupportedQuery) {
		log.WithError(err).Debug("Skipping unsupported collection")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrCollect, code, dt, err)
	}
	if len(points) == 0 {
		log.Debug("No points to store")
		return nil
	}

	if err := c.repo.BatchInsertPoints(ctx, points); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrStore, code, dt, err)
	}
	log.WithField("points", len(points)).Info("Stored points")
	return nil
}

// Bootstrap backfills the last days of history one day at a time, so a long
// backfill never holds more than a day of points in memory.
func (c *Collector) Bootstrap(ctx context.Context, days int) error {
	end := c.now().UTC().Truncate(time.Hour)
	var errs []error
	for d := days; d > 0; d-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		from := end.Add(-time.Duration(d) * 24 * time.Hour)
		if err := c.Collect(ctx, from, from.Add(24*time.Hour)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
