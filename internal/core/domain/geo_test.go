package domain_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/samirrijal/cityview/internal/core/domain"
)

func TestBoundingBox_Valid(t *testing.T) {
	tests := []struct {
		name string
		box  domain.BoundingBox
		want bool
	}{
		{"ordered", domain.BoundingBox{
			SouthWest: domain.Coordinate{Lat: -22.9519, Lon: -43.2105},
			NorthEast: domain.Coordinate{Lat: -22.8633, Lon: -43.1139},
		}, true},
		{"degenerate point", domain.BoundingBox{
			SouthWest: domain.Coordinate{Lat: 1, Lon: 1},
			NorthEast: domain.Coordinate{Lat: 1, Lon: 1},
		}, true},
		{"lat inverted", domain.BoundingBox{
			SouthWest: domain.Coordinate{Lat: 5, Lon: -73},
			NorthEast: domain.Coordinate{Lat: -33, Lon: -34},
		}, false},
		{"lon inverted", domain.BoundingBox{
			SouthWest: domain.Coordinate{Lat: -33, Lon: -34},
			NorthEast: domain.Coordinate{Lat: 5, Lon: -73},
		}, false},
		{"out of range", domain.BoundingBox{
			SouthWest: domain.Coordinate{Lat: -91, Lon: 0},
			NorthEast: domain.Coordinate{Lat: 0, Lon: 0},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundingBox_Contains(t *testing.T) {
	box := domain.BoundingBox{
		SouthWest: domain.Coordinate{Lat: -23.6821, Lon: -46.7359},
		NorthEast: domain.Coordinate{Lat: -23.5015, Lon: -46.5445},
	}

	if !box.Contains(domain.Coordinate{Lat: -23.5505, Lon: -46.6333}) {
		t.Error("expected São Paulo center inside its bounds")
	}
	if box.Contains(domain.Coordinate{Lat: -22.9068, Lon: -43.1729}) {
		t.Error("expected Rio center outside São Paulo bounds")
	}

	c := box.Center()
	if !box.Contains(c) {
		t.Errorf("center %v not inside box", c)
	}
}

func TestCoordinate_PointRoundTrip(t *testing.T) {
	c := domain.Coordinate{Lat: -22.9068, Lon: -43.1729}
	p := c.Point()
	if p.Lat() != c.Lat || p.Lon() != c.Lon {
		t.Fatalf("orb point %v does not match %v", p, c)
	}
	if got := domain.CoordinateFromPoint(p); got != c {
		t.Errorf("expected %v, got %v", c, got)
	}
}

func TestFetchError_Kinds(t *testing.T) {
	base := errors.New("boom")

	wrapped := fmt.Errorf("search: %w", domain.NewServiceError(503, base))
	if !errors.Is(wrapped, domain.ErrService) {
		t.Error("expected errors.Is to match ErrService")
	}
	if errors.Is(wrapped, domain.ErrNetwork) {
		t.Error("service error must not match ErrNetwork")
	}
	if !errors.Is(wrapped, base) {
		t.Error("expected underlying error to be reachable")
	}

	fe, ok := domain.AsFetchError(wrapped)
	if !ok || fe.StatusCode != 503 {
		t.Fatalf("expected FetchError with status 503, got %+v", fe)
	}
}

func TestFailedState(t *testing.T) {
	now := time.Now()
	st := domain.Failed(domain.NewParseError(errors.New("bad json")), now)
	if st.Status != domain.FetchFailed {
		t.Errorf("expected failed, got %s", st.Status)
	}
	if st.Kind != domain.KindParse {
		t.Errorf("expected parse kind, got %q", st.Kind)
	}
	if st.Reason == "" {
		t.Error("expected a reason")
	}

	loaded := domain.Loaded([]domain.PointOfInterest{{ID: 1, Label: "a"}}, now)
	if loaded.Count != 1 || loaded.Status != domain.FetchLoaded {
		t.Errorf("unexpected loaded state %+v", loaded)
	}
}

func TestSnapshot_FetchDefaultsToNotStarted(t *testing.T) {
	var s domain.Snapshot
	if got := s.Fetch(domain.ViewCityA).Status; got != domain.FetchNotStarted {
		t.Errorf("expected not_started, got %s", got)
	}
}
