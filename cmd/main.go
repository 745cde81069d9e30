package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/tejusbharadwaj/gridfeed/internal/adapter"
	"github.com/tejusbharadwaj/gridfeed/internal/api"
	"github.com/tejusbharadwaj/gridfeed/internal/config"
	"github.com/tejusbharadwaj/gridfeed/internal/database"
	server "github.com/tejusbharadwaj/gridfeed/internal/grpc"
	"github.com/tejusbharadwaj/gridfeed/internal/registry"
	"github.com/tejusbharadwaj/gridfeed/internal/scheduler"
	"github.com/tejusbharadwaj/gridfeed/internal/transport"
)

// Command gridfeed serves electricity market prices and load from grid
// authorities over gRPC.
//
// The service supports:
//   - Live LMP and load queries against every registered authority
//   - Authority discovery by data type
//   - An optional TimescaleDB archive filled by a cron collector
//   - Archive aggregation (MIN, MAX, AVG, SUM) over 5m, 1h and 1d windows
//   - Prometheus metrics
//
// Usage:
//
//	gridfeed [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-no-archive
//	      serve live queries only, without a database
func main() {
	flags := parseFlags()

	appConfig, err := config.Load(flags.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(appConfig.Logging)
	logger.WithFields(logrus.Fields{
		"port":        appConfig.Server.Port,
		"authorities": len(registry.Codes()),
	}).Info("Starting gridfeed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	upstreamMetrics := transport.NewMetrics()
	if err := upstreamMetrics.Register(reg); err != nil {
		logger.Fatalf("Failed to register metrics: %v", err)
	}

	pool := api.NewPool(clientOptions(appConfig, logger, upstreamMetrics))

	var repo database.PointRepository
	if !flags.NoArchive {
		pg, err := database.NewPostgresRepo(appConfig.Database.DSN())
		if err != nil {
			logger.Fatalf("Failed to create repository: %v", err)
		}
		repo = pg
		defer repo.Close()
	}

	svc := server.NewGridService(pool, repo, logger)

	srv, health, err := server.SetupServer(svc, server.ServerConfig{
		CacheSize:      appConfig.Server.CacheSize,
		CacheTTL:       appConfig.Server.CacheTTL,
		RateLimit:      appConfig.Server.RateLimit,
		RateLimitBurst: appConfig.Server.RateLimitBurst,
	}, logger, reg)
	if err != nil {
		logger.Fatalf("Failed to setup server: %v", err)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.Port))
	if err != nil {
		logger.Fatalf("Failed to listen: %v", err)
	}

	errChan := make(chan error, 3)

	if repo != nil && appConfig.Collector.Enabled {
		sched, err := startCollector(ctx, appConfig.Collector, pool, repo, logger)
		if err != nil {
			logger.Fatalf("Failed to start collector: %v", err)
		}
		defer sched.Stop()
	}

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.MetricsPort),
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	go handleShutdown(ctx, srv, health, metricsSrv, logger)

	logger.WithFields(logrus.Fields{
		"port": appConfig.Server.Port,
	}).Info("Starting gRPC server")

	go func() {
		if err := srv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
			return
		}
		errChan <- nil
	}()

	if err := <-errChan; err != nil {
		logger.Fatalf("Service error: %v", err)
	}
	logger.Info("Server stopped")
}

type Flags struct {
	ConfigPath string
	NoArchive  bool
}

func parseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "config.yaml", "Path to the config file")
	flag.BoolVar(&f.NoArchive, "no-archive", false, "Serve live queries only, without a database")

	flag.Parse()

	return f
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// clientOptions maps the upstream config onto per-authority client options.
func clientOptions(cfg *config.Config, logger *logrus.Logger, metrics *transport.Metrics) func(registry.Authority) []api.ClientOption {
	up := cfg.Upstream
	return func(a registry.Authority) []api.ClientOption {
		return []api.ClientOption{
			api.WithLogger(logger),
			api.WithMetrics(metrics),
			api.WithCredentials(cfg.Credentials.Map()),
			api.WithTimeout(up.CallTimeout),
			api.WithConcurrency(up.Concurrency),
			api.WithRetry(adapter.RetryPolicy{
				Attempts:  up.RetryAttempts,
				BaseDelay: up.RetryBaseDelay,
				MaxDelay:  up.RetryMaxDelay,
			}),
			api.WithHTTPConfig(transport.HTTPConfig{
				Timeout:   up.Timeout,
				RateLimit: up.RateLimit(a.Code),
				UserAgent: up.UserAgent,
			}),
			api.WithArchiveCache(up.ArchiveCacheSize, up.ArchiveCacheTTL),
		}
	}
}

func startCollector(ctx context.Context, cfg config.CollectorConfig, pool *api.Pool, repo database.PointRepository, logger *logrus.Logger) (*scheduler.Scheduler, error) {
	targets := make([]api.Target, 0, len(cfg.Authorities))
	for _, t := range cfg.Authorities {
		client, err := pool.Client(t.Code)
		if err != nil {
			return nil, err
		}
		targets = append(targets, api.Target{Client: client, Nodes: t.Nodes})
	}

	collector := api.NewCollector(repo, logger, targets...)
	sched := scheduler.NewScheduler(ctx, collector, scheduler.Config{
		Schedule: cfg.Schedule,
		Lookback: cfg.Lookback,
	}, logger)

	go func() {
		if err := sched.Bootstrap(cfg.BootstrapDays); err != nil {
			logger.WithError(err).Error("Bootstrap incomplete")
		}
	}()

	if err := sched.Start(); err != nil {
		return nil, err
	}
	return sched, nil
}

// Handle graceful shutdown
func handleShutdown(ctx context.Context, srv *grpc.Server, health *server.HealthChecker, metricsSrv *http.Server, logger *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("Context canceled, initiating shutdown")
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("Received signal, initiating shutdown")
	}

	health.Shutdown()
	logger.Info("Gracefully stopping server...")
	srv.GracefulStop()
	if err := metricsSrv.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Warn("Metrics server shutdown failed")
	}
}
