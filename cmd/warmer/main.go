package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/samirrijal/cityview/internal/adapters/overpass"
	"github.com/samirrijal/cityview/internal/adapters/valkey"
	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/core/usecases"
	"github.com/samirrijal/cityview/internal/pkg/config"
	"github.com/samirrijal/cityview/internal/pkg/logging"
	"github.com/samirrijal/cityview/internal/pkg/telemetry"
)

// The warmer re-runs the point search for every fetchable view on an
// interval shorter than the cache TTL, so API replicas sharing the same
// Valkey instance rarely have to wait on Overpass.
func main() {
	cfg, err := config.Load("cityview-warmer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if !cfg.Valkey.Enabled {
		log.Fatal("warmer requires valkey.enabled")
	}
	if cfg.Overpass.CacheTTL <= 0 {
		log.Fatal("warmer requires a positive overpass.cache_ttl")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	cache, err := valkey.New(cfg.Valkey.Addr, "cityview:")
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	registry, err := usecases.NewViewRegistry(usecases.DefaultViews())
	if err != nil {
		log.Fatalf("views: %v", err)
	}

	searcher := overpass.NewClient(overpass.Config{
		Endpoint:      cfg.Overpass.Endpoint,
		Amenity:       cfg.Overpass.Amenity,
		LabelPrefix:   cfg.Overpass.LabelPrefix,
		UserAgent:     cfg.Overpass.UserAgent,
		Timeout:       cfg.Overpass.Timeout,
		RatePerSecond: cfg.Overpass.RatePerSecond,
		Burst:         cfg.Overpass.Burst,
	})
	svc := usecases.NewSearchService(registry, searcher, cache, cfg.Overpass.RadiusMeters, cfg.Overpass.CacheTTL)

	views := registry.Fetchable()
	slog.Info("cache warmer starting", "views", len(views), "interval", cfg.Warmer.Interval.String())

	ticker := time.NewTicker(cfg.Warmer.Interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Run once immediately
	warmAll(ctx, svc, views, cfg.Warmer.Concurrency)

	for {
		select {
		case <-ticker.C:
			warmAll(ctx, svc, views, cfg.Warmer.Concurrency)
		case <-ctx.Done():
			return
		case sig := <-quit:
			slog.Info("shutting down cache warmer", "signal", sig.String())
			cancel()
			return
		}
	}
}

func warmAll(ctx context.Context, svc *usecases.SearchService, views []domain.NamedView, concurrency int) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, v := range views {
		wg.Add(1)
		go func(view domain.NamedView) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			n, err := svc.Refresh(ctx, view.ID)
			if err != nil {
				slog.Warn("warm view failed", "view", view.ID, "error", err)
				return
			}
			slog.Info("warmed view", "view", view.ID, "points", n, "elapsed", time.Since(start).String())
		}(v)
	}

	wg.Wait()
}
