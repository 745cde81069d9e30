// Package scheduler runs the archive collector on a cron schedule.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Collector is the part of api.Collector the scheduler drives.
type Collector interface {
	Collect(ctx context.Context, start, end time.Time) error
	Bootstrap(ctx context.Context, days int) error
}

// Config controls the collection cadence.
type Config struct {
	// Schedule is a standard five-field cron expression.
	Schedule string
	// Lookback is the window re-collected on every run. Overlap with the
	// previous run is harmless because the archive upserts.
	Lookback time.Duration
	// Timeout bounds one run.
	Timeout time.Duration
}

type Scheduler struct {
	ctx       context.Context
	collector Collector
	cfg       Config
	logger    logrus.FieldLogger
	cron      *cron.Cron
	now       func() time.Time
}

func NewScheduler(ctx context.Context, collector Collector, cfg Config, logger logrus.FieldLogger) *Scheduler {
	if cfg.Schedule == "" {
		cfg.Schedule = "*/5 * * * *"
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Scheduler{
		ctx:       ctx,
		collector: collector,
		cfg:       cfg,
		logger:    logger,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Start the scheduler
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, s.collectData)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.cfg.Schedule).Info("Collector scheduled")
	return nil
}

// Bootstrap backfills history before the first scheduled run.
func (s *Scheduler) Bootstrap(days int) error {
	if days <= 0 {
		return nil
	}
	s.logger.WithField("days", days).Info("Bootstrapping historical data")
	return s.collector.Bootstrap(s.ctx, days)
}

// collectData re-collects the lookback window ending now.
func (s *Scheduler) collectData() {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	end := s.now().UTC()
	start := end.Add(-s.cfg.Lookback)

	if err := s.collector.Collect(ctx, start, end); err != nil {
		s.logger.WithError(err).Error("Failed to collect data")
	}
}

// Stop the scheduler and wait for a running collection to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
