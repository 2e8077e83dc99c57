package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/pkg/geospatial"
)

// ListViewsHandler returns the view catalog.
func ListViewsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"views": deps.Search.Views()})
	}
}

// GetViewHandler returns a single view by id.
func GetViewHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		view, err := deps.Search.View(domain.ViewID(c.Params("id")))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(view)
	}
}

// poiResponse decorates a point with its distance from the view center.
type poiResponse struct {
	domain.PointOfInterest
	DistanceMeters float64 `json:"distance_meters"`
}

// ViewPointsHandler runs a one-shot search around a fetchable view.
// ?format=geojson returns a FeatureCollection; otherwise a paginated list.
func ViewPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := domain.ViewID(c.Params("id"))
		format := c.Query("format", "json")
		if format != "json" && format != "geojson" {
			return errBadRequest(c, "format must be json or geojson")
		}

		view, err := deps.Search.View(id)
		if err != nil {
			return errFromDomain(c, err)
		}

		points, err := deps.Search.PointsForView(c.UserContext(), id)
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("points lookup failed", "view", id, "error", err)
			return errFromDomain(c, err)
		}

		if format == "geojson" {
			return c.JSON(featureCollection(view, points))
		}

		out := make([]poiResponse, 0, len(points))
		for _, p := range points {
			out = append(out, poiResponse{
				PointOfInterest: p,
				DistanceMeters:  geospatial.Distance(view.Center, p.Position),
			})
		}

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(out)
		if offset >= total {
			out = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			out = out[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: out, Pagination: pg})
	}
}

// FetchStatsHandler returns fetch outcomes aggregated from the event stream.
func FetchStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Stats == nil {
			return c.JSON(fiber.Map{"views": []any{}, "source": "disabled"})
		}
		return c.JSON(fiber.Map{"views": deps.Stats.Snapshot(), "source": "nats"})
	}
}

func featureCollection(view domain.NamedView, points []domain.PointOfInterest) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(view.Bounds.Bound())
	for _, p := range points {
		f := geojson.NewFeature(p.Position.Point())
		f.ID = p.ID
		f.Properties["label"] = p.Label
		f.Properties["view"] = string(view.ID)
		fc.Append(f)
	}
	return fc
}
