package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/pkg/geospatial"
)

var (
	rio      = domain.Coordinate{Lat: -22.9068, Lon: -43.1729}
	saoPaulo = domain.Coordinate{Lat: -23.5505, Lon: -46.6333}
)

func TestDistance(t *testing.T) {
	d := geospatial.Distance(rio, saoPaulo)
	// Rio to São Paulo is roughly 360 km as the crow flies.
	if d < 350_000 || d > 370_000 {
		t.Errorf("expected ~360km, got %.0fm", d)
	}
	if geospatial.Distance(rio, rio) != 0 {
		t.Error("distance to self must be zero")
	}
}

func TestSearchArea(t *testing.T) {
	box := geospatial.SearchArea(rio, 50000)
	if !box.Valid() {
		t.Fatalf("invalid box %+v", box)
	}
	if !box.Contains(rio) {
		t.Error("search area must contain its center")
	}

	north := domain.Coordinate{Lat: box.NorthEast.Lat, Lon: rio.Lon}
	if d := geospatial.Distance(rio, north); math.Abs(d-50000) > 500 {
		t.Errorf("expected north edge ~50km away, got %.0fm", d)
	}
}
