package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/zonetrack/internal/adapters/http/api"
	"github.com/okian/zonetrack/internal/adapters/http/swagger"
	"github.com/okian/zonetrack/internal/adapters/repository"
	app "github.com/okian/zonetrack/internal/app"
	"github.com/okian/zonetrack/internal/config"
	"github.com/okian/zonetrack/internal/domain/filter"
	"github.com/okian/zonetrack/pkg/logger"
	"github.com/okian/zonetrack/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run loads configuration, wires the application and serves until ctx ends.
func run(ctx context.Context) error {
	loggerInstance := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	a, err := newApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, a.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return nil
}

// application bundles the wired components behind the HTTP mux.
type application struct {
	svc     *app.Service
	journal repository.Journal
	feed    *api.Feed
	mux     *http.ServeMux
}

// newApplication opens the journal, starts the tracking service and
// registers every route.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	journal, err := repository.Open(ctx, cfg.JournalDriver, cfg.JournalPath, cfg.JournalSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	feed := api.NewFeed()
	svc, err := app.New(
		app.WithLogger(logger.Named("service")),
		app.WithQueueSize(cfg.FrameQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithEngineConfig(cfg.Engine()),
		app.WithROI(cfg.Polygon()),
		app.WithJournal(journal),
		app.WithPublisher(feed),
		app.WithFilter(
			filter.WithMinConfidence(cfg.MinConfidence),
			filter.WithLabelThresholdsFromConfig(cfg.LabelMinConfidence),
			filter.WithAllowedLabels(cfg.Labels),
		),
	)
	if err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("failed to start service: %w", err)
	}

	// HTTP mux and routes.
	mux := http.NewServeMux()

	// Register API docs under /api-docs
	swagger.Register(ctx, mux)

	// Register business API routes with the service dependency.
	apiServer := api.NewServer(svc, svc, cfg.MaxCrossingsLimit, feed)
	apiServer.Register(ctx, mux)

	return &application{svc: svc, journal: journal, feed: feed, mux: mux}, nil
}

// close stops the service before the journal it writes to.
func (a *application) close(ctx context.Context) {
	a.feed.Close()
	a.svc.Stop()
	if err := a.journal.Close(); err != nil {
		logger.Get().Warn(ctx, "journal close failed", logger.Error(err))
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval) // Update every 10 seconds
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval) // Update every 5 seconds
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	// Update memory usage
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	// Update goroutine count
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	// Update GC pause time
	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges that only change between ticks.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}

	if tracks, ok := stats["tracks"].(int); ok {
		metrics.UpdateTracksActive(tracks)
	}

	if vertices, ok := stats["roiVertices"].(int); ok {
		metrics.UpdateROIVertices(vertices)
	}
}
