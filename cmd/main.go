package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/gridpick/internal/adapters/auth"
	"github.com/okian/gridpick/internal/adapters/http/api"
	"github.com/okian/gridpick/internal/adapters/http/swagger"
	"github.com/okian/gridpick/internal/adapters/recordstore"
	"github.com/okian/gridpick/internal/adapters/scoringapi"
	service "github.com/okian/gridpick/internal/app"
	"github.com/okian/gridpick/internal/config"
	"github.com/okian/gridpick/internal/domain/notify"
	"github.com/okian/gridpick/pkg/logger"
	"github.com/okian/gridpick/pkg/metrics"

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
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Re-initialize with the configured format, then apply the level.
	_ = logger.Init(logger.WithFormat(logger.Format(cfg.LogFormat)))
	loggerInstance := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, closeStore, err := recordstore.Open(ctx, recordstore.Settings{
		Driver:  cfg.RecordStoreDriver,
		URL:     cfg.RecordStoreURL,
		APIKey:  cfg.RecordStoreKey,
		DSN:     cfg.DatabaseURL,
		Timeout: cfg.RequestTimeout(),
	})
	if err != nil {
		loggerInstance.Error(ctx, "failed to open record store", logger.String("driver", cfg.RecordStoreDriver), logger.Error(err))
		return
	}
	defer closeStore()

	svc := newService(cfg, store, loggerInstance)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			loggerInstance.Warn(ctx, "service stop incomplete", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	router := newRouter(ctx, cfg, svc, loggerInstance)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("record_store", cfg.RecordStoreDriver),
			logger.String("scoring_api", cfg.ScoringAPIURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// newService wires the scoring API client, the record store repositories and
// the notification feed into the game service.
func newService(cfg *config.Config, store recordstore.Store, log logger.Logger) *service.Service {
	client := scoringapi.New(cfg.ScoringAPIURL,
		scoringapi.WithTimeout(cfg.RequestTimeout()),
		scoringapi.WithLogger(log.Named("scoringapi")),
	)
	notes := notify.New(
		notify.WithHistory(cfg.NotificationHistory),
		notify.WithLogger(log.Named("notify")),
	)
	return service.New(service.Deps{
		API:       client,
		Races:     recordstore.NewRaces(store),
		Picks:     recordstore.NewBallots(store),
		Rivalries: recordstore.NewRivalries(store),
		Profiles:  recordstore.NewProfiles(store),
		Notes:     notes,
	},
		service.WithGradeWorkers(cfg.GradeWorkerCount),
		service.WithGradeQueueSize(cfg.GradeQueueSize),
		service.WithStandingsTTL(cfg.StandingsTTL()),
		service.WithMaxStandingsLimit(cfg.MaxStandingsLimit),
		service.WithLogger(log.Named("service")),
	)
}

// newRouter builds the API routes and mounts the docs next to them.
func newRouter(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) chi.Router {
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	router := api.NewServer(svc, verifier,
		api.WithAllowedOrigins(cfg.AllowedOrigins),
		api.WithLogger(log.Named("http")),
	).Routes()
	swagger.Register(ctx, router)
	return router
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
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
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
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
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["gradeQueueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}

	if workers, ok := stats["gradeWorkers"].(int); ok {
		metrics.UpdateWorkerCount(workers)
	}

	if entries, ok := stats["standingsEntries"].(int); ok {
		metrics.UpdateStandingsEntries(entries)
	}
}
