package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sjsage522/pricecompare/config"
	"sjsage522/pricecompare/helpers"
	"sjsage522/pricecompare/internal/catalog"
	"sjsage522/pricecompare/internal/crawler"
	"sjsage522/pricecompare/internal/monitor"
	"sjsage522/pricecompare/internal/search"
	"sjsage522/pricecompare/logger"
	"sjsage522/pricecompare/services/cache"
	"sjsage522/pricecompare/services/publisher"
)

// app holds the services a command runs against
type app struct {
	store     catalog.Store
	rendered  *crawler.RenderedBackend
	search    *search.Service
	monitor   *monitor.Monitor
	publisher *publisher.RedisPublisher
	metrics   *http.Server
}

// newApp wires the pipeline from cfg
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.Default
	a := &app{}

	shops, err := config.LoadShops(cfg.ShopsFile)
	if err != nil {
		return nil, err
	}

	phrases, err := config.LoadPhrases(cfg.SamplePhrasesFile)
	if err != nil {
		log.Warn().Err(err).Msg("no default search phrases")
	}

	// Initialize cache service
	var cacheSvc cache.CacheService
	if cfg.MemcacheAddr != "" {
		memcache := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := memcache.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("memcache unavailable, rate limit blocks disabled")
		} else {
			cacheSvc = memcache
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	if cfg.DatabaseURL != "" {
		a.store, err = catalog.OpenPostgres(ctx, cfg.DatabaseURL)
	} else {
		a.store, err = catalog.OpenSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}

	a.rendered = crawler.NewRenderedBackend(crawler.RenderedOptions{
		BrowserBin: cfg.BrowserBin,
		Headless:   cfg.BrowserHeadless,
		Wait:       cfg.RenderWait,
	})
	orchestrator := crawler.NewOrchestrator(
		crawler.NewRegistry(),
		[]crawler.Backend{
			crawler.NewStaticBackend(helpers.NewClient(cfg.FetchTimeout), cacheSvc, cfg.RateLimitBlock),
			a.rendered,
		},
		crawler.Options{
			MaxStaticFetches:    cfg.MaxStaticFetches,
			MaxRenderedSessions: cfg.MaxRenderedSessions,
			FetchTimeout:        cfg.FetchTimeout,
		},
	)

	reconciler := catalog.NewReconciler(a.store, cfg.ReconcileWorkers)
	a.search, err = search.NewService(orchestrator, shops, phrases, reconciler)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.monitor = monitor.New(orchestrator, a.search.Shops(), a.store, cfg.MaxStaticFetches)

	if cfg.RedisAddr != "" {
		a.publisher = publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		logger.Info("Publishing price drops to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	if cfg.MetricsAddr != "" {
		a.serveMetrics(cfg.MetricsAddr)
	}

	log.Debug().Int("shops", len(shops)).Int("default_phrases", len(phrases)).Msg("pipeline ready")
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metrics = &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("Serving metrics on %s/metrics", addr)
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Default.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// Close releases everything newApp opened
func (a *app) Close() {
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.metrics.Shutdown(ctx)
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.rendered != nil {
		if err := a.rendered.Close(); err != nil {
			logger.Default.Warn().Err(err).Msg("failed to close browser")
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}
