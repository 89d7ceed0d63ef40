package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/worldbank-dashboard/internal/cache"
	"github.com/kjstillabower/worldbank-dashboard/internal/charts"
	"github.com/kjstillabower/worldbank-dashboard/internal/client"
	"github.com/kjstillabower/worldbank-dashboard/internal/config"
	"github.com/kjstillabower/worldbank-dashboard/internal/dataset"
	httphandler "github.com/kjstillabower/worldbank-dashboard/internal/http"
	"github.com/kjstillabower/worldbank-dashboard/internal/lifecycle"
	"github.com/kjstillabower/worldbank-dashboard/internal/observability"
	"github.com/kjstillabower/worldbank-dashboard/internal/provider"
	"github.com/kjstillabower/worldbank-dashboard/internal/snapshot"
)

// loadTimeout bounds the startup dataset load. A cold start with no snapshot
// fetches every configured indicator from the World Bank API.
const loadTimeout = 5 * time.Minute

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	// The app context cancels the background refresh listener and any chart
	// warming still running when a shutdown signal arrives.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wbClient := client.NewRestClientWithRetry(
		cfg.WorldBankBaseURL,
		cfg.WorldBankTimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)

	var store snapshot.Store
	switch cfg.SnapshotBackend {
	case "sqlite":
		st, err := snapshot.OpenSQLiteStore(cfg.SnapshotPath)
		if err != nil {
			logger.Fatal("sqlite snapshot store", zap.Error(err))
		}
		store = st
		logger.Info("snapshot backend: sqlite", zap.String("path", cfg.SnapshotPath))
	default:
		store = snapshot.NewCSVStore(cfg.SnapshotPath)
		logger.Info("snapshot backend: csv", zap.String("path", cfg.SnapshotPath))
	}

	var chartCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		chartCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		chartCache = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	renderer := charts.NewRenderer(logger)

	opts := provider.Options{
		Indicators: cfg.Indicators,
		StartYear:  cfg.StartYear,
		EndYear:    cfg.EndYear,
		MaxAge:     cfg.SnapshotMaxAge,
	}
	if cfg.WarmCharts {
		warmer := cache.NewChartWarmer(renderer, chartCache, cfg.CacheTTL, logger)
		// Runs after every dataset publish, so the initial load and each
		// background refresh land pre-rendered default charts in the cache.
		// The warmed indicator must be the one paramless chart requests
		// default to, or the warmed keys are never read.
		opts.OnSwap = func(ds *dataset.Dataset) {
			indicators := ds.Indicators()
			if len(indicators) == 0 {
				return
			}
			go func() {
				warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
				defer warmCancel()
				if err := warmer.Warm(warmCtx, ds, indicators[0].Code); err != nil {
					logger.Warn("chart warming failed", zap.Error(err))
				}
			}()
		}
	}
	dataProvider := provider.New(wbClient, store, logger, opts)

	loadCtx, loadCancel := context.WithTimeout(ctx, loadTimeout)
	ds, err := dataProvider.Load(loadCtx)
	loadCancel()
	if err != nil {
		logger.Fatal("dataset load", zap.Error(err))
	}
	lifecycle.SetReady(true)
	logger.Info("dataset ready",
		zap.Int("observations", ds.Len()),
		zap.Bool("stale", dataProvider.Stale()))

	dataProvider.StartRefreshListener(ctx, cfg.RefreshRetryInitial, cfg.RefreshRetryMax)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		RateLimitBurst:       cfg.RateLimitBurst,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(dataProvider, renderer, chartCache, cfg.CacheTTL, healthConfig, logger)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/", handler.GetDashboard).Methods("GET")
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	chartRouter := router.PathPrefix("/charts").Subrouter()
	chartRouter.Use(httphandler.RateLimitMiddleware(limiter))
	chartRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	chartRouter.HandleFunc("/{chart}", handler.GetChart).Methods("GET")
	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/observations", handler.GetObservations).Methods("GET")
	apiRouter.HandleFunc("/countries", handler.GetCountries).Methods("GET")
	apiRouter.HandleFunc("/indicators", handler.GetIndicators).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("snapshot store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
