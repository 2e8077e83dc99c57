package http_test

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	handler "github.com/samirrijal/cityview/internal/adapters/http"
	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/core/usecases"
)

type recordedMarker struct {
	at    domain.Coordinate
	label string
	point bool
}

type fakeMarkers struct {
	clears  int
	markers []recordedMarker
	failOn  string
}

func (f *fakeMarkers) SetCenterZoom(domain.Coordinate, domain.ZoomLevel) error { return nil }
func (f *fakeMarkers) FlyToBounds(domain.BoundingBox, domain.FlyOptions) error  { return nil }
func (f *fakeMarkers) PlaceMarker(at domain.Coordinate, label string) error {
	if label == f.failOn {
		return errors.New("surface closed")
	}
	f.markers = append(f.markers, recordedMarker{at: at, label: label})
	return nil
}
func (f *fakeMarkers) PlacePointMarker(at domain.Coordinate, label string) error {
	f.markers = append(f.markers, recordedMarker{at: at, label: label, point: true})
	return nil
}
func (f *fakeMarkers) ClearMarkers() error {
	f.clears++
	f.markers = nil
	return nil
}

func testRegistry(t *testing.T) *usecases.ViewRegistry {
	t.Helper()
	reg, err := usecases.NewViewRegistry(usecases.DefaultViews())
	require.NoError(t, err)
	return reg
}

func pois(ids ...int64) []domain.PointOfInterest {
	out := make([]domain.PointOfInterest, len(ids))
	for i, id := range ids {
		out[i] = domain.PointOfInterest{ID: id, Label: "Restaurant", Position: domain.Coordinate{Lat: -22.9, Lon: -43.2}}
	}
	return out
}

func button(vm handler.ViewModel, id domain.ViewID) handler.ButtonModel {
	for _, b := range vm.Buttons {
		if b.View == id {
			return b
		}
	}
	return handler.ButtonModel{}
}

func TestProject_Indicators(t *testing.T) {
	reg := testRegistry(t)
	snap := domain.Snapshot{
		Version:    4,
		ActiveView: domain.ViewCityA,
		Fetches: map[domain.ViewID]domain.FetchState{
			domain.ViewCityA: {Status: domain.FetchLoaded, Points: pois(1, 2, 3), Count: 3},
			domain.ViewCityB: {Status: domain.FetchInFlight},
		},
		VisiblePoints: pois(1, 2, 3),
	}

	vm := handler.Project(reg, snap)
	assert.Equal(t, "state", vm.Type)
	assert.Equal(t, uint64(4), vm.Version)
	assert.Equal(t, 3, vm.Points)
	require.Len(t, vm.Buttons, 3)

	a := button(vm, domain.ViewCityA)
	assert.True(t, a.Active)
	assert.Equal(t, handler.IndicatorCount, a.Indicator)
	assert.Equal(t, "3 restaurants", a.Text)

	b := button(vm, domain.ViewCityB)
	assert.False(t, b.Active)
	assert.Equal(t, handler.IndicatorSpinner, b.Indicator)

	initial := button(vm, domain.ViewInitial)
	assert.Equal(t, handler.IndicatorNone, initial.Indicator)
}

func TestProject_FailedAndEmpty(t *testing.T) {
	reg := testRegistry(t)
	snap := domain.Snapshot{
		ActiveView: domain.ViewInitial,
		Fetches: map[domain.ViewID]domain.FetchState{
			domain.ViewCityA: {Status: domain.FetchLoaded, Count: 0},
			domain.ViewCityB: {Status: domain.FetchFailed, Reason: "service_error: status 504"},
		},
	}

	vm := handler.Project(reg, snap)
	assert.Equal(t, handler.IndicatorNone, button(vm, domain.ViewCityA).Indicator, "zero results show no count")

	b := button(vm, domain.ViewCityB)
	assert.Equal(t, handler.IndicatorError, b.Indicator)
	assert.Equal(t, "service_error: status 504", b.Text)
}

func TestPresenter_RendersMarkersOnChange(t *testing.T) {
	reg := testRegistry(t)
	markers := &fakeMarkers{}
	var sent []handler.ViewModel
	p := handler.NewPresenter(reg, markers, func(v any) error {
		sent = append(sent, v.(handler.ViewModel))
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p.Render(domain.Snapshot{Version: 1, ActiveView: domain.ViewInitial})
	require.Len(t, markers.markers, 1)
	assert.Equal(t, handler.HereLabel, markers.markers[0].label)
	assert.Equal(t, reg.Initial().Center, markers.markers[0].at)

	p.Render(domain.Snapshot{Version: 2, ActiveView: domain.ViewCityA, VisiblePoints: pois(7, 8)})
	assert.Equal(t, 2, markers.clears)
	require.Len(t, markers.markers, 3, "here marker plus two points")
	assert.False(t, markers.markers[0].point, "here marker keeps the default icon")
	assert.True(t, markers.markers[1].point)
	assert.True(t, markers.markers[2].point)

	// Same view and points: only the view model changes.
	p.Render(domain.Snapshot{Version: 3, ActiveView: domain.ViewCityA, VisiblePoints: pois(7, 8)})
	assert.Equal(t, 2, markers.clears)
	assert.Len(t, sent, 3)
}

func TestPresenter_DropsOutOfOrderSnapshots(t *testing.T) {
	reg := testRegistry(t)
	markers := &fakeMarkers{}
	var versions []uint64
	p := handler.NewPresenter(reg, markers, func(v any) error {
		versions = append(versions, v.(handler.ViewModel).Version)
		return nil
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p.Render(domain.Snapshot{Version: 5, ActiveView: domain.ViewCityB, VisiblePoints: pois(1)})
	p.Render(domain.Snapshot{Version: 3, ActiveView: domain.ViewCityA, VisiblePoints: pois(2, 3)})
	p.Render(domain.Snapshot{Version: 5, ActiveView: domain.ViewCityA})

	assert.Equal(t, []uint64{5}, versions)
	assert.Len(t, markers.markers, 2, "stale snapshots never touch markers")
}

func TestPresenter_HereMarkerFailureStopsRendering(t *testing.T) {
	reg := testRegistry(t)
	markers := &fakeMarkers{failOn: handler.HereLabel}
	var buf bytes.Buffer
	p := handler.NewPresenter(reg, markers, func(any) error { return nil },
		slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	p.Render(domain.Snapshot{Version: 1, ActiveView: domain.ViewCityA, VisiblePoints: pois(1, 2)})

	assert.Empty(t, markers.markers, "points are not drawn without the here marker")
	assert.Contains(t, buf.String(), "place marker")
}

func TestPresenter_SendErrorIsNotFatal(t *testing.T) {
	reg := testRegistry(t)
	p := handler.NewPresenter(reg, &fakeMarkers{}, func(any) error {
		return errors.New("session closed")
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NotPanics(t, func() {
		p.Render(domain.Snapshot{Version: 1, ActiveView: domain.ViewCityA})
	})
}
