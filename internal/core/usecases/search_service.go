package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/core/ports"
	"github.com/samirrijal/cityview/internal/pkg/metrics"
)

// SearchService answers one-shot point-of-interest queries for the REST and
// GraphQL surfaces. It holds no session state.
type SearchService struct {
	registry *ViewRegistry
	searcher ports.PointSearcher
	cache    ports.CacheService
	radius   int
	ttl      int
}

// NewSearchService creates a new SearchService. cache may be nil; ttlSeconds
// <= 0 disables caching.
func NewSearchService(registry *ViewRegistry, searcher ports.PointSearcher, cache ports.CacheService, radiusMeters, ttlSeconds int) *SearchService {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &SearchService{
		registry: registry,
		searcher: searcher,
		cache:    cache,
		radius:   radiusMeters,
		ttl:      ttlSeconds,
	}
}

// Views lists the catalog.
func (s *SearchService) Views() []domain.NamedView {
	return s.registry.List()
}

// View returns a single view or domain.ErrUnknownView.
func (s *SearchService) View(id domain.ViewID) (domain.NamedView, error) {
	return s.registry.Lookup(id)
}

// PointsForView searches around the center of a fetchable view.
func (s *SearchService) PointsForView(ctx context.Context, id domain.ViewID) ([]domain.PointOfInterest, error) {
	view, err := s.registry.Lookup(id)
	if err != nil {
		return nil, err
	}
	if !view.Fetchable {
		return nil, fmt.Errorf("%w: %q", domain.ErrNotFetchable, id)
	}

	if s.caching() {
		if data, err := s.cache.Get(ctx, s.cacheKey(view)); err == nil && data != nil {
			var points []domain.PointOfInterest
			if err := json.Unmarshal(data, &points); err == nil {
				metrics.CacheHits.WithLabelValues("points_for_view").Inc()
				return points, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("points_for_view").Inc()
	}

	return s.search(ctx, view)
}

// Refresh searches a fetchable view upstream and overwrites its cache
// entry. It returns the number of points stored.
func (s *SearchService) Refresh(ctx context.Context, id domain.ViewID) (int, error) {
	view, err := s.registry.Lookup(id)
	if err != nil {
		return 0, err
	}
	if !view.Fetchable {
		return 0, fmt.Errorf("%w: %q", domain.ErrNotFetchable, id)
	}
	points, err := s.search(ctx, view)
	if err != nil {
		return 0, err
	}
	return len(points), nil
}

func (s *SearchService) search(ctx context.Context, view domain.NamedView) ([]domain.PointOfInterest, error) {
	points, err := s.searcher.Search(ctx, view.Center, s.radius)
	if err != nil {
		return nil, err
	}

	if s.caching() {
		if data, err := json.Marshal(points); err == nil {
			_ = s.cache.Set(ctx, s.cacheKey(view), data, s.ttl)
		}
	}

	return points, nil
}

func (s *SearchService) cacheKey(view domain.NamedView) string {
	return fmt.Sprintf("pois:%s:%.4f:%.4f:%d", view.ID, view.Center.Lat, view.Center.Lon, s.radius)
}

func (s *SearchService) caching() bool {
	return s.cache != nil && s.ttl > 0
}

// Radius is the search radius in meters.
func (s *SearchService) Radius() int {
	return s.radius
}
