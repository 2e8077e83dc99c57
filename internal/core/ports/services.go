package ports

import (
	"context"

	"github.com/samirrijal/cityview/internal/core/domain"
)

// PointSearcher queries a remote geodata service for points of interest
// within radiusMeters of center. Implementations make exactly one attempt
// and return a *domain.FetchError on failure.
type PointSearcher interface {
	Search(ctx context.Context, center domain.Coordinate, radiusMeters int) ([]domain.PointOfInterest, error)
}

// MapAdapter drives a rendering surface. Calls must not block on animation
// and must not call back into the session that issued them.
type MapAdapter interface {
	SetCenterZoom(center domain.Coordinate, zoom domain.ZoomLevel) error
	FlyToBounds(bounds domain.BoundingBox, opts domain.FlyOptions) error
	// PlaceMarker adds a marker drawn with the default icon.
	PlaceMarker(position domain.Coordinate, label string) error
	// PlacePointMarker adds a marker for a point of interest, drawn with the
	// point icon when one is configured.
	PlacePointMarker(position domain.Coordinate, label string) error
	ClearMarkers() error
}

// EventPublisher publishes session events to a message broker.
type EventPublisher interface {
	PublishViewSelected(ctx context.Context, event *domain.ViewSelectedEvent) error
	PublishFetchCompleted(ctx context.Context, event *domain.FetchCompletedEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
