package http

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/core/ports"
	"github.com/samirrijal/cityview/internal/core/usecases"
)

// IndicatorKind is what a view button shows above its label.
type IndicatorKind string

const (
	IndicatorNone    IndicatorKind = ""
	IndicatorSpinner IndicatorKind = "spinner"
	IndicatorCount   IndicatorKind = "count"
	IndicatorError   IndicatorKind = "error"
)

// HereLabel is the popup of the marker at the active view center.
const HereLabel = "You are here"

// ButtonModel is one view button.
type ButtonModel struct {
	View      domain.ViewID `json:"view"`
	Label     string        `json:"label"`
	Active    bool          `json:"active"`
	Indicator IndicatorKind `json:"indicator,omitempty"`
	Count     int           `json:"count,omitempty"`
	Text      string        `json:"text,omitempty"`
}

// ViewModel is the presentation state sent to the client.
type ViewModel struct {
	Type       string        `json:"type"`
	Version    uint64        `json:"version"`
	ActiveView domain.ViewID `json:"active_view"`
	Buttons    []ButtonModel `json:"buttons"`
	Points     int           `json:"points"`
}

// Project derives the view model from a snapshot. It has no side effects.
func Project(registry *usecases.ViewRegistry, snap domain.Snapshot) ViewModel {
	vm := ViewModel{
		Type:       "state",
		Version:    snap.Version,
		ActiveView: snap.ActiveView,
		Points:     len(snap.VisiblePoints),
	}
	for _, v := range registry.List() {
		b := ButtonModel{View: v.ID, Label: v.Label, Active: v.ID == snap.ActiveView}
		if v.Fetchable {
			st := snap.Fetch(v.ID)
			switch st.Status {
			case domain.FetchInFlight:
				b.Indicator = IndicatorSpinner
			case domain.FetchLoaded:
				if st.Count > 0 {
					b.Indicator = IndicatorCount
					b.Count = st.Count
					b.Text = fmt.Sprintf("%d restaurants", st.Count)
				}
			case domain.FetchFailed:
				b.Indicator = IndicatorError
				b.Text = st.Reason
			}
		}
		vm.Buttons = append(vm.Buttons, b)
	}
	return vm
}

// Presenter renders coordinator snapshots: markers through the map adapter
// and the view model through send. Out-of-order snapshots are dropped.
type Presenter struct {
	registry *usecases.ViewRegistry
	markers  ports.MapAdapter
	send     func(any) error
	log      *slog.Logger

	mu          sync.Mutex
	lastVersion uint64
	lastView    domain.ViewID
	lastPoints  []domain.PointOfInterest
	rendered    bool
}

// NewPresenter creates a Presenter. Pass its Render method to Coordinator.Subscribe.
func NewPresenter(registry *usecases.ViewRegistry, markers ports.MapAdapter, send func(any) error, log *slog.Logger) *Presenter {
	return &Presenter{registry: registry, markers: markers, send: send, log: log}
}

// Render applies snap if it is newer than the last one rendered.
func (p *Presenter) Render(snap domain.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rendered && snap.Version <= p.lastVersion {
		return
	}
	p.lastVersion = snap.Version

	if !p.rendered || snap.ActiveView != p.lastView || !samePoints(snap.VisiblePoints, p.lastPoints) {
		p.renderMarkers(snap)
		p.lastView = snap.ActiveView
		p.lastPoints = snap.VisiblePoints
	}
	p.rendered = true

	if err := p.send(Project(p.registry, snap)); err != nil {
		p.log.Debug("send state", "error", err)
	}
}

func (p *Presenter) renderMarkers(snap domain.Snapshot) {
	view, err := p.registry.Lookup(snap.ActiveView)
	if err != nil {
		return
	}
	if err := p.markers.ClearMarkers(); err != nil {
		p.log.Debug("clear markers", "error", err)
		return
	}
	if err := p.markers.PlaceMarker(view.Center, HereLabel); err != nil {
		p.log.Debug("place marker", "error", err)
		return
	}
	for _, pt := range snap.VisiblePoints {
		if err := p.markers.PlacePointMarker(pt.Position, pt.Label); err != nil {
			p.log.Debug("place marker", "error", err)
			return
		}
	}
}

func samePoints(a, b []domain.PointOfInterest) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
