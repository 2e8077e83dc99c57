package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/cityview/internal/adapters/http"
	"github.com/samirrijal/cityview/internal/adapters/mapsurface"
	natsadapter "github.com/samirrijal/cityview/internal/adapters/nats"
	"github.com/samirrijal/cityview/internal/adapters/overpass"
	"github.com/samirrijal/cityview/internal/adapters/valkey"
	"github.com/samirrijal/cityview/internal/core/ports"
	"github.com/samirrijal/cityview/internal/core/usecases"
	"github.com/samirrijal/cityview/internal/pkg/config"
	"github.com/samirrijal/cityview/internal/pkg/logging"
	"github.com/samirrijal/cityview/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("cityview-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

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

	deps := &http.Dependencies{
		Registry:  registry,
		Searcher:  searcher,
		RateLimit: cfg.Server.RateLimit,
		Session: http.SessionConfig{
			Coordinator: usecases.CoordinatorConfig{
				RadiusMeters: cfg.Overpass.RadiusMeters,
				Refetch:      usecases.RefetchPolicy(cfg.Views.Refetch),
				FetchTimeout: cfg.Views.FetchTimeout,
			},
			Prefetch: cfg.Views.Prefetch,
			Icon:      markerIcon(cfg.Map.Icon),
			PointIcon: markerIcon(cfg.Map.PointIcon),
		},
	}

	// Cache
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr, "cityview:")
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache = vc
			deps.Cache = vc
			deps.LimiterStorage = valkey.NewStorage(vc, "limiter")
		}
	}
	deps.Search = usecases.NewSearchService(registry, searcher, cache, cfg.Overpass.RadiusMeters, cfg.Overpass.CacheTTL)

	// NATS
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			deps.Events = pub
			deps.NATS = pub.Conn()

			sub, err := natsadapter.NewSubscriber(pub.Conn())
			if err != nil {
				slog.Warn("nats subscriber unavailable", "error", err)
			} else {
				stats := usecases.NewFetchStats()
				if err := sub.SubscribeFetchCompleted(ctx, stats.Record); err != nil {
					slog.Warn("fetch stats subscription failed", "error", err)
				} else {
					defer sub.Close()
					deps.Stats = stats
				}
			}
		}
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "CityView API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "overpass", cfg.Overpass.Endpoint, "refetch", cfg.Views.Refetch)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	cancel()

	slog.Info("server stopped")
}

func markerIcon(c config.IconConfig) mapsurface.Icon {
	return mapsurface.Icon{
		RetinaURL:   c.RetinaURL,
		URL:         c.URL,
		ShadowURL:   c.ShadowURL,
		Size:        pair(c.Size),
		Anchor:      pair(c.Anchor),
		PopupAnchor: pair(c.PopupAnchor),
	}
}

func pair(v []int) [2]int {
	if len(v) != 2 {
		return [2]int{}
	}
	return [2]int{v[0], v[1]}
}
