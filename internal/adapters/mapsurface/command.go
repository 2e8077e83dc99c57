package mapsurface

import "github.com/samirrijal/cityview/internal/core/domain"

// CommandType names a renderer operation.
type CommandType string

const (
	CmdDefaultIcon  CommandType = "default_icon"
	CmdSetView      CommandType = "set_view"
	CmdFlyToBounds  CommandType = "fly_to_bounds"
	CmdMarker       CommandType = "marker"
	CmdClearMarkers CommandType = "clear_markers"
)

// LatLngBounds is Leaflet's [[south, west], [north, east]] form.
type LatLngBounds [2][2]float64

// Command is one JSON message for the renderer. Only the fields relevant to
// Type are set.
type Command struct {
	Type     CommandType        `json:"type"`
	Center   *domain.Coordinate `json:"center,omitempty"`
	Zoom     *domain.ZoomLevel  `json:"zoom,omitempty"`
	Bounds   *LatLngBounds      `json:"bounds,omitempty"`
	MaxZoom  *domain.ZoomLevel  `json:"max_zoom,omitempty"`
	Position *domain.Coordinate `json:"position,omitempty"`
	Label    string             `json:"label,omitempty"`
	Icon     *Icon              `json:"icon,omitempty"`
}

func leafletBounds(b domain.BoundingBox) LatLngBounds {
	return LatLngBounds{
		{b.SouthWest.Lat, b.SouthWest.Lon},
		{b.NorthEast.Lat, b.NorthEast.Lon},
	}
}
