// Command server runs the vendor aggregator HTTP service, wiring
// configuration, cache, circuit breakers, vendor fetchers, and the
// aggregator into an http.Server with graceful shutdown, following
// the teacher's main.go start/signal/shutdown shape.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iaros/vendor-aggregator/internal/aggregator"
	"github.com/iaros/vendor-aggregator/internal/cache"
	"github.com/iaros/vendor-aggregator/internal/cache/memcache"
	"github.com/iaros/vendor-aggregator/internal/cache/rediscache"
	"github.com/iaros/vendor-aggregator/internal/circuit"
	"github.com/iaros/vendor-aggregator/internal/clock"
	"github.com/iaros/vendor-aggregator/internal/config"
	"github.com/iaros/vendor-aggregator/internal/httpapi"
	"github.com/iaros/vendor-aggregator/internal/metrics"
	"github.com/iaros/vendor-aggregator/internal/ratelimit"
	"github.com/iaros/vendor-aggregator/internal/vendor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	clk := clock.Real{}

	store := buildCache(cfg, logger)
	defer store.Close()

	breakers := circuit.NewRegistry(cfg.Breaker.Threshold, cfg.Breaker.Cooldown)

	sources := buildVendorSources(cfg, breakers, logger)

	m := metrics.New(prometheus.DefaultRegisterer)

	agg := aggregator.New(sources, store, clk, aggregator.Config{
		FreshnessWindow: cfg.Aggregator.FreshnessWindow,
		VendorTimeout:   cfg.Aggregator.VendorTimeout,
		VendorRetries:   cfg.Aggregator.VendorRetries,
		CacheTTL:        cfg.Aggregator.ProductCacheTTL,
		SpreadThreshold: cfg.Aggregator.SelectorSpreadPct,
	}, logger, m)

	limiter := ratelimit.New(store, clk, cfg.RateLimit.PerMinute, time.Minute+time.Second)

	server := httpapi.New(agg, limiter, breakers, clk, m, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting vendor aggregator", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down vendor aggregator")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("vendor aggregator stopped")
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	return cfg.Build()
}

func buildCache(cfg *config.Config, logger *zap.Logger) cache.Cache {
	if cfg.Redis.Host == "" {
		logger.Info("no redis host configured, using in-process cache")
		return memcache.New(cfg.Redis.CacheTTL, 2*cfg.Redis.CacheTTL)
	}

	store, err := rediscache.New(context.Background(), rediscache.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-process cache", zap.Error(err))
		return memcache.New(cfg.Redis.CacheTTL, 2*cfg.Redis.CacheTTL)
	}
	return store
}

func buildVendorSources(cfg *config.Config, breakers *circuit.Registry, logger *zap.Logger) []aggregator.VendorSource {
	sources := make([]aggregator.VendorSource, 0, len(cfg.Vendors.Vendors))
	for _, vc := range cfg.Vendors.Vendors {
		var fetcher vendor.Fetcher
		switch vc.Mode {
		case "http":
			fetcher = vendor.NewHTTPFetcher(vc.Name, vc.URL, cfg.Aggregator.VendorTimeout, logger)
		case "chaos":
			inner := vendor.NewStubFetcher(vc.Name)
			fetcher = vendor.NewChaosFetcher(inner, 10*time.Millisecond, 200*time.Millisecond, 0.2, int64(len(vc.Name)))
		default:
			fetcher = vendor.NewStubFetcher(vc.Name)
		}

		sources = append(sources, aggregator.VendorSource{
			Fetcher: fetcher,
			Breaker: breakers.Get(vc.Name),
		})
	}
	return sources
}
