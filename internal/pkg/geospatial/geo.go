package geospatial

import (
	"github.com/paulmach/orb/geo"

	"github.com/samirrijal/cityview/internal/core/domain"
)

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b domain.Coordinate) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}

// SearchArea returns the box that encloses a circular search of
// radiusMeters around center.
func SearchArea(center domain.Coordinate, radiusMeters float64) domain.BoundingBox {
	b := geo.NewBoundAroundPoint(center.Point(), radiusMeters)
	return domain.BoundingBox{
		SouthWest: domain.CoordinateFromPoint(b.Min),
		NorthEast: domain.CoordinateFromPoint(b.Max),
	}
}
