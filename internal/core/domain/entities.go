package domain

import (
	"time"
)

// ViewID identifies a named view. The set is closed and defined at startup.
type ViewID string

const (
	ViewInitial ViewID = "initial"
	ViewCityA   ViewID = "cityA"
	ViewCityB   ViewID = "cityB"
)

// ZoomLevel is a map zoom level (0 = whole world).
type ZoomLevel int

const (
	MinZoom ZoomLevel = 0
	MaxZoom ZoomLevel = 22
)

// NamedView is a predefined camera position the user can select.
type NamedView struct {
	ID        ViewID      `json:"id"`
	Label     string      `json:"label"`
	Center    Coordinate  `json:"center"`
	Bounds    BoundingBox `json:"bounds"`
	Zoom      ZoomLevel   `json:"zoom"`
	Fetchable bool        `json:"fetchable"`
}

// FlyOptions tunes a fly-to-bounds camera animation.
type FlyOptions struct {
	MaxZoom ZoomLevel `json:"max_zoom"`
}

// PointOfInterest is a named place returned by the geodata service.
type PointOfInterest struct {
	ID       int64      `json:"id"`
	Label    string     `json:"label"`
	Position Coordinate `json:"position"`
}

// FetchStatus is the lifecycle stage of a per-view fetch.
type FetchStatus string

const (
	FetchNotStarted FetchStatus = "not_started"
	FetchInFlight   FetchStatus = "in_flight"
	FetchLoaded     FetchStatus = "loaded"
	FetchFailed     FetchStatus = "failed"
)

// FetchState is the per-view fetch slot held by the coordinator.
// Points and Count are only meaningful when Status is FetchLoaded,
// Reason and Kind only when it is FetchFailed.
type FetchState struct {
	Status    FetchStatus       `json:"status"`
	Points    []PointOfInterest `json:"points,omitempty"`
	Count     int               `json:"count"`
	Reason    string            `json:"reason,omitempty"`
	Kind      FetchErrorKind    `json:"kind,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
}

// Loaded builds a Loaded fetch state.
func Loaded(points []PointOfInterest, at time.Time) FetchState {
	return FetchState{Status: FetchLoaded, Points: points, Count: len(points), UpdatedAt: at}
}

// Failed builds a Failed fetch state from err.
func Failed(err error, at time.Time) FetchState {
	st := FetchState{Status: FetchFailed, Reason: err.Error(), UpdatedAt: at}
	if fe, ok := AsFetchError(err); ok {
		st.Kind = fe.Kind
	}
	return st
}

// Snapshot is a consistent copy of a coordinator's state.
// Version increases by one on every transition.
type Snapshot struct {
	Version       uint64                `json:"version"`
	ActiveView    ViewID                `json:"active_view"`
	Fetches       map[ViewID]FetchState `json:"fetches"`
	VisiblePoints []PointOfInterest     `json:"visible_points"`
}

// Fetch returns the fetch state for id, NotStarted when absent.
func (s Snapshot) Fetch(id ViewID) FetchState {
	if st, ok := s.Fetches[id]; ok {
		return st
	}
	return FetchState{Status: FetchNotStarted}
}

// ViewSelectedEvent is published whenever a session changes its active view.
type ViewSelectedEvent struct {
	SessionID string    `json:"session_id"`
	View      ViewID    `json:"view"`
	At        time.Time `json:"at"`
}

// FetchCompletedEvent is published when a per-view fetch resolves.
type FetchCompletedEvent struct {
	SessionID string      `json:"session_id"`
	View      ViewID      `json:"view"`
	Status    FetchStatus `json:"status"`
	Count     int         `json:"count"`
	Reason    string      `json:"reason,omitempty"`
	Stale     bool        `json:"stale"`
	Duration  float64     `json:"duration_seconds"`
	At        time.Time   `json:"at"`
}
