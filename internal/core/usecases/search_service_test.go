package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/core/usecases"
)

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func newSearchService(t *testing.T, searcher *mockSearcher, cache *mockCache, ttl int) *usecases.SearchService {
	t.Helper()
	reg, err := usecases.NewViewRegistry(usecases.DefaultViews())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if cache == nil {
		return usecases.NewSearchService(reg, searcher, nil, 0, ttl)
	}
	return usecases.NewSearchService(reg, searcher, cache, 0, ttl)
}

func TestSearchService_PointsForView(t *testing.T) {
	var gotRadius int
	searcher := &mockSearcher{searchFn: func(ctx context.Context, center domain.Coordinate, radius int) ([]domain.PointOfInterest, error) {
		gotRadius = radius
		return points(1, 2), nil
	}}
	svc := newSearchService(t, searcher, nil, 0)

	pts, err := svc.PointsForView(context.Background(), domain.ViewCityB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 2 {
		t.Errorf("expected 2 points, got %d", len(pts))
	}
	if gotRadius != usecases.DefaultRadiusMeters {
		t.Errorf("expected default radius, got %d", gotRadius)
	}
}

func TestSearchService_Errors(t *testing.T) {
	searcher := &mockSearcher{searchFn: func(ctx context.Context, center domain.Coordinate, radius int) ([]domain.PointOfInterest, error) {
		return nil, domain.NewParseError(errors.New("bad json"))
	}}
	svc := newSearchService(t, searcher, nil, 0)

	if _, err := svc.PointsForView(context.Background(), domain.ViewInitial); !errors.Is(err, domain.ErrNotFetchable) {
		t.Errorf("expected ErrNotFetchable, got %v", err)
	}
	if _, err := svc.PointsForView(context.Background(), "nowhere"); !errors.Is(err, domain.ErrUnknownView) {
		t.Errorf("expected ErrUnknownView, got %v", err)
	}
	if _, err := svc.PointsForView(context.Background(), domain.ViewCityA); !errors.Is(err, domain.ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
	if searcher.calls.Load() != 1 {
		t.Errorf("only the fetchable lookup should reach the searcher, got %d calls", searcher.calls.Load())
	}
}

func TestSearchService_Caches(t *testing.T) {
	searcher := &mockSearcher{searchFn: func(ctx context.Context, center domain.Coordinate, radius int) ([]domain.PointOfInterest, error) {
		return points(1, 2, 3), nil
	}}
	cache := newMockCache()
	svc := newSearchService(t, searcher, cache, 60)

	for i := 0; i < 3; i++ {
		pts, err := svc.PointsForView(context.Background(), domain.ViewCityA)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pts) != 3 {
			t.Fatalf("expected 3 points, got %d", len(pts))
		}
	}
	if searcher.calls.Load() != 1 {
		t.Errorf("expected one upstream call, got %d", searcher.calls.Load())
	}
	if cache.sets != 1 {
		t.Errorf("expected one cache write, got %d", cache.sets)
	}
}

func TestSearchService_RefreshOverwritesCache(t *testing.T) {
	n := int64(0)
	searcher := &mockSearcher{searchFn: func(ctx context.Context, center domain.Coordinate, radius int) ([]domain.PointOfInterest, error) {
		n++
		ids := make([]int64, n)
		for i := range ids {
			ids[i] = int64(i + 1)
		}
		return points(ids...), nil
	}}
	cache := newMockCache()
	svc := newSearchService(t, searcher, cache, 60)

	if _, err := svc.PointsForView(context.Background(), domain.ViewCityA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err := svc.Refresh(context.Background(), domain.ViewCityA)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if count != 2 {
		t.Errorf("expected refresh to store 2 points, got %d", count)
	}

	pts, _ := svc.PointsForView(context.Background(), domain.ViewCityA)
	if len(pts) != 2 {
		t.Errorf("expected refreshed entry with 2 points, got %d", len(pts))
	}
	if searcher.calls.Load() != 2 {
		t.Errorf("expected 2 upstream calls, got %d", searcher.calls.Load())
	}

	if _, err := svc.Refresh(context.Background(), domain.ViewInitial); !errors.Is(err, domain.ErrNotFetchable) {
		t.Errorf("expected ErrNotFetchable, got %v", err)
	}
}
