package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/cityview/internal/adapters/mapsurface"
	"github.com/samirrijal/cityview/internal/adapters/valkey"
	"github.com/samirrijal/cityview/internal/core/ports"
	"github.com/samirrijal/cityview/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Registry *usecases.ViewRegistry
	Search   *usecases.SearchService
	Stats    *usecases.FetchStats
	// Searcher backs interactive sessions; the Search service wraps the same client.
	Searcher ports.PointSearcher
	Events   ports.EventPublisher
	Session  SessionConfig
	NATS     *nats.Conn
	Cache    *valkey.Cache
	// LimiterStorage shares rate-limit counters across replicas when set.
	LimiterStorage fiber.Storage
	RateLimit      int
}

// SessionConfig tunes interactive view sessions.
type SessionConfig struct {
	Coordinator usecases.CoordinatorConfig
	Prefetch    bool
	Icon        mapsurface.Icon
	PointIcon   mapsurface.Icon
}
