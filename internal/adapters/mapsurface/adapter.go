// Package mapsurface drives a remote Leaflet rendering surface by sending it
// camera and marker commands. The surface only exists in an interactive
// client, so an Adapter can only be built once that capability is confirmed.
package mapsurface

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/samirrijal/cityview/internal/core/domain"
)

// ErrNotInteractive is returned when the environment cannot host a map.
var ErrNotInteractive = errors.New("map surface requires an interactive environment")

// Environment reports whether a rendering surface is available.
type Environment interface {
	Interactive() bool
}

// Surface delivers commands to the renderer. Send must not block.
type Surface interface {
	Send(cmd Command) error
}

// Capability is an Environment that becomes interactive once confirmed,
// e.g. when the client reports its map container is mounted.
type Capability struct {
	ready atomic.Bool
}

// Confirm marks the environment interactive.
func (c *Capability) Confirm() { c.ready.Store(true) }

// Interactive implements Environment.
func (c *Capability) Interactive() bool { return c.ready.Load() }

// Adapter implements ports.MapAdapter on top of a Surface.
type Adapter struct {
	surface   Surface
	icon      Icon
	pointIcon *Icon
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPointIcon draws point-of-interest markers with icon instead of the
// default icon.
func WithPointIcon(icon Icon) Option {
	return func(a *Adapter) {
		if icon.URL != "" {
			a.pointIcon = &icon
		}
	}
}

// New builds an Adapter for surface. It fails with ErrNotInteractive unless
// env is interactive. The process-wide default icon is resolved on the first
// successful call; later icon arguments are ignored.
func New(env Environment, surface Surface, icon Icon, opts ...Option) (*Adapter, error) {
	if env == nil || !env.Interactive() {
		return nil, ErrNotInteractive
	}
	if surface == nil {
		return nil, errors.New("map surface is nil")
	}

	ConfigureDefaultIcon(icon)
	a := &Adapter{surface: surface, icon: DefaultIcon()}
	for _, opt := range opts {
		opt(a)
	}

	icn := a.icon
	if err := a.surface.Send(Command{Type: CmdDefaultIcon, Icon: &icn}); err != nil {
		return nil, fmt.Errorf("send default icon: %w", err)
	}
	return a, nil
}

// SetCenterZoom positions the camera without animation.
func (a *Adapter) SetCenterZoom(center domain.Coordinate, zoom domain.ZoomLevel) error {
	return a.surface.Send(Command{Type: CmdSetView, Center: &center, Zoom: &zoom})
}

// FlyToBounds animates the camera to frame bounds, capped at opts.MaxZoom.
func (a *Adapter) FlyToBounds(bounds domain.BoundingBox, opts domain.FlyOptions) error {
	lb := leafletBounds(bounds)
	maxZoom := opts.MaxZoom
	return a.surface.Send(Command{Type: CmdFlyToBounds, Bounds: &lb, MaxZoom: &maxZoom})
}

// PlaceMarker adds a marker with a popup label using the default icon.
func (a *Adapter) PlaceMarker(position domain.Coordinate, label string) error {
	return a.surface.Send(Command{Type: CmdMarker, Position: &position, Label: label})
}

// PlacePointMarker adds a point-of-interest marker. Without a point icon it
// falls back to the default icon.
func (a *Adapter) PlacePointMarker(position domain.Coordinate, label string) error {
	cmd := Command{Type: CmdMarker, Position: &position, Label: label}
	if a.pointIcon != nil {
		icn := *a.pointIcon
		cmd.Icon = &icn
	}
	return a.surface.Send(cmd)
}

// ClearMarkers removes every marker placed so far.
func (a *Adapter) ClearMarkers() error {
	return a.surface.Send(Command{Type: CmdClearMarkers})
}
