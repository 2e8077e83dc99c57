package usecases

import (
	"fmt"
	"strings"

	"github.com/samirrijal/cityview/internal/core/domain"
)

// ViewRegistry is the immutable catalog of named views.
type ViewRegistry struct {
	order []domain.ViewID
	views map[domain.ViewID]domain.NamedView
}

// DefaultViews returns the built-in catalog: a wide view of Brazil and
// two fetchable city views.
func DefaultViews() []domain.NamedView {
	return []domain.NamedView{
		{
			ID:     domain.ViewCityA,
			Label:  "Rio de Janeiro",
			Center: domain.Coordinate{Lat: -22.9068, Lon: -43.1729},
			Bounds: domain.BoundingBox{
				SouthWest: domain.Coordinate{Lat: -22.9519, Lon: -43.2105},
				NorthEast: domain.Coordinate{Lat: -22.8633, Lon: -43.1139},
			},
			Zoom:      13,
			Fetchable: true,
		},
		{
			ID:     domain.ViewCityB,
			Label:  "São Paulo",
			Center: domain.Coordinate{Lat: -23.5505, Lon: -46.6333},
			Bounds: domain.BoundingBox{
				SouthWest: domain.Coordinate{Lat: -23.6821, Lon: -46.7359},
				NorthEast: domain.Coordinate{Lat: -23.5015, Lon: -46.5445},
			},
			Zoom:      13,
			Fetchable: true,
		},
		{
			ID:     domain.ViewInitial,
			Label:  "Initial view",
			Center: domain.Coordinate{Lat: -14.235, Lon: -51.9253},
			Bounds: domain.BoundingBox{
				SouthWest: domain.Coordinate{Lat: -33.7472, Lon: -73.9872},
				NorthEast: domain.Coordinate{Lat: 5.2718, Lon: -34.7922},
			},
			Zoom:      5,
			Fetchable: false,
		},
	}
}

// NewViewRegistry validates views and builds a registry. The catalog must
// contain exactly one non-fetchable view, domain.ViewInitial.
func NewViewRegistry(views []domain.NamedView) (*ViewRegistry, error) {
	var errs []string
	r := &ViewRegistry{views: make(map[domain.ViewID]domain.NamedView, len(views))}

	for _, v := range views {
		if v.ID == "" {
			errs = append(errs, "view id must not be empty")
			continue
		}
		if _, dup := r.views[v.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate view id %q", v.ID))
			continue
		}
		if !v.Center.Valid() {
			errs = append(errs, fmt.Sprintf("%s: center %v out of range", v.ID, v.Center))
		}
		if !v.Bounds.Valid() {
			errs = append(errs, fmt.Sprintf("%s: bounds south-west must not exceed north-east", v.ID))
		} else if !v.Bounds.Contains(v.Center) {
			errs = append(errs, fmt.Sprintf("%s: center %v outside bounds", v.ID, v.Center))
		}
		if v.Zoom < domain.MinZoom || v.Zoom > domain.MaxZoom {
			errs = append(errs, fmt.Sprintf("%s: zoom must be %d-%d, got %d", v.ID, domain.MinZoom, domain.MaxZoom, v.Zoom))
		}
		if v.Fetchable == (v.ID == domain.ViewInitial) {
			errs = append(errs, fmt.Sprintf("%s: only the initial view may be non-fetchable", v.ID))
		}
		r.views[v.ID] = v
		r.order = append(r.order, v.ID)
	}

	if _, ok := r.views[domain.ViewInitial]; !ok {
		errs = append(errs, "initial view is required")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("view registry invalid:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return r, nil
}

// Lookup returns the view with the given id or domain.ErrUnknownView.
func (r *ViewRegistry) Lookup(id domain.ViewID) (domain.NamedView, error) {
	v, ok := r.views[id]
	if !ok {
		return domain.NamedView{}, fmt.Errorf("%w: %q", domain.ErrUnknownView, id)
	}
	return v, nil
}

// List returns all views in catalog order.
func (r *ViewRegistry) List() []domain.NamedView {
	out := make([]domain.NamedView, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.views[id])
	}
	return out
}

// Initial returns the non-fetchable bootstrap view.
func (r *ViewRegistry) Initial() domain.NamedView {
	return r.views[domain.ViewInitial]
}

// Fetchable returns the views that carry point-of-interest data, in catalog order.
func (r *ViewRegistry) Fetchable() []domain.NamedView {
	var out []domain.NamedView
	for _, id := range r.order {
		if v := r.views[id]; v.Fetchable {
			out = append(out, v)
		}
	}
	return out
}
