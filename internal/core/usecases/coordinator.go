package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/cityview/internal/core/domain"
	"github.com/samirrijal/cityview/internal/core/ports"
	"github.com/samirrijal/cityview/internal/pkg/metrics"
	"github.com/samirrijal/cityview/internal/pkg/telemetry"
)

// RefetchPolicy decides what re-selecting a Loaded view does.
type RefetchPolicy string

const (
	// RefetchAlways replaces the cached result with a fresh fetch on every selection.
	RefetchAlways RefetchPolicy = "always"
	// RefetchCache serves the cached Loaded result; only NotStarted and Failed views fetch.
	RefetchCache RefetchPolicy = "cache"
)

// DefaultRadiusMeters is the search radius around a view center.
const DefaultRadiusMeters = 50000

// CoordinatorConfig tunes a Coordinator.
type CoordinatorConfig struct {
	SessionID    string
	RadiusMeters int
	Refetch      RefetchPolicy
	// FetchTimeout bounds a single search. Zero means the session lifetime.
	FetchTimeout time.Duration
}

// Coordinator is the per-session view/fetch state machine. It owns the
// active view, one FetchState per fetchable view and the visible points.
//
// Select never waits on the network: the camera is commanded under the
// state lock, so it always precedes any fetch result applied for the new
// view, and searches run on their own goroutines. A completed search always
// writes its own view's slot, but visible points are only ever derived from
// the active view's slot, so late results cannot leak into another view.
type Coordinator struct {
	cfg      CoordinatorConfig
	registry *ViewRegistry
	searcher ports.PointSearcher
	camera   ports.MapAdapter
	events   ports.EventPublisher
	log      *slog.Logger
	tracer   trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// selectMu serializes transitions; mu guards the state below.
	selectMu sync.Mutex
	mu       sync.Mutex
	active   domain.ViewID
	fetches  map[domain.ViewID]domain.FetchState
	// awaited marks in-flight searches whose view was active while they ran.
	awaited  map[domain.ViewID]bool
	visible  []domain.PointOfInterest
	version  uint64
	subs     []func(domain.Snapshot)
}

// NewCoordinator creates a Coordinator whose fetches live until ctx is
// cancelled or Close is called. events may be nil.
func NewCoordinator(
	ctx context.Context,
	registry *ViewRegistry,
	searcher ports.PointSearcher,
	camera ports.MapAdapter,
	events ports.EventPublisher,
	cfg CoordinatorConfig,
) *Coordinator {
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = DefaultRadiusMeters
	}
	if cfg.Refetch == "" {
		cfg.Refetch = RefetchAlways
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Coordinator{
		cfg:      cfg,
		registry: registry,
		searcher: searcher,
		camera:   camera,
		events:   events,
		log:      slog.Default().With("session", cfg.SessionID),
		tracer:   telemetry.Tracer(),
		ctx:      ctx,
		cancel:   cancel,
		active:   domain.ViewInitial,
		fetches:  make(map[domain.ViewID]domain.FetchState),
		awaited:  make(map[domain.ViewID]bool),
	}
	for _, v := range registry.Fetchable() {
		c.fetches[v.ID] = domain.FetchState{Status: domain.FetchNotStarted}
	}
	return c
}

// Subscribe registers fn to receive a snapshot after every transition.
// Snapshots may arrive out of order; consumers should compare Version.
func (c *Coordinator) Subscribe(fn func(domain.Snapshot)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Start positions the camera on the initial view without fetching.
func (c *Coordinator) Start(ctx context.Context) error {
	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	initial := c.registry.Initial()

	c.mu.Lock()
	if err := c.camera.SetCenterZoom(initial.Center, initial.Zoom); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("position camera: %w", err)
	}
	c.flyTo(initial)
	c.active = initial.ID
	c.recomputeVisibleLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return nil
}

// Select makes id the active view, moves the camera and, for fetchable
// views, starts a search unless one is already in flight. Fetch failures
// are recorded in the view's FetchState and never returned here; the only
// error is domain.ErrUnknownView.
func (c *Coordinator) Select(ctx context.Context, id domain.ViewID) error {
	view, err := c.registry.Lookup(id)
	if err != nil {
		c.log.Warn("select rejected", "view", id, "error", err)
		return err
	}

	_, span := c.tracer.Start(ctx, "coordinator.select", trace.WithAttributes(
		telemetry.AttrSession.String(c.cfg.SessionID),
		telemetry.AttrView.String(string(id)),
	))
	defer span.End()

	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	metrics.ViewSelections.WithLabelValues(string(id)).Inc()

	c.mu.Lock()
	// A search finishing for this view has to wait for mu, so it cannot
	// land before the camera command.
	c.flyTo(view)
	c.active = id
	start := false
	if view.Fetchable {
		start = c.claimLocked(id, c.cfg.Refetch == RefetchCache)
		if c.fetches[id].Status == domain.FetchInFlight {
			c.awaited[id] = true
		}
	}
	c.recomputeVisibleLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)

	if start {
		metrics.FetchesStarted.WithLabelValues(string(id), "select").Inc()
		c.launch(view)
	}

	c.publishSelected(id)
	return nil
}

// Prefetch starts searches for every fetchable view that has no data yet
// (NotStarted or Failed) without changing the active view.
func (c *Coordinator) Prefetch(ctx context.Context) {
	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	var started []domain.NamedView
	c.mu.Lock()
	for _, v := range c.registry.Fetchable() {
		if c.claimLocked(v.ID, true) {
			if v.ID == c.active {
				c.awaited[v.ID] = true
			}
			started = append(started, v)
		}
	}
	if len(started) == 0 {
		c.mu.Unlock()
		return
	}
	c.recomputeVisibleLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	for _, v := range started {
		metrics.FetchesStarted.WithLabelValues(string(v.ID), "prefetch").Inc()
		c.launch(v)
	}
}

// Snapshot returns a consistent copy of the current state.
func (c *Coordinator) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// Wait blocks until every started search has completed.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels outstanding searches and waits for them to finish.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// claimLocked marks id InFlight and reports whether a search should start.
// An InFlight slot is never claimed twice. keepLoaded leaves Loaded slots alone.
func (c *Coordinator) claimLocked(id domain.ViewID, keepLoaded bool) bool {
	st := c.fetches[id]
	switch {
	case st.Status == domain.FetchInFlight:
		metrics.DuplicateFetchesSkipped.WithLabelValues(string(id)).Inc()
		return false
	case st.Status == domain.FetchLoaded && keepLoaded:
		return false
	}
	c.fetches[id] = domain.FetchState{Status: domain.FetchInFlight, UpdatedAt: time.Now()}
	return true
}

func (c *Coordinator) launch(view domain.NamedView) {
	c.wg.Add(1)
	go c.fetch(view)
}

func (c *Coordinator) fetch(view domain.NamedView) {
	defer c.wg.Done()

	ctx := c.ctx
	if c.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()
	}
	ctx, span := c.tracer.Start(ctx, "coordinator.fetch", trace.WithAttributes(
		telemetry.AttrSession.String(c.cfg.SessionID),
		telemetry.AttrView.String(string(view.ID)),
		telemetry.AttrRadius.Int(c.cfg.RadiusMeters),
	))
	defer span.End()

	started := time.Now()
	points, err := c.searcher.Search(ctx, view.Center, c.cfg.RadiusMeters)
	elapsed := time.Since(started)

	var st domain.FetchState
	if err != nil {
		st = domain.Failed(err, time.Now())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		st = domain.Loaded(points, time.Now())
	}

	// Check-and-write is atomic with respect to Select.
	c.mu.Lock()
	c.fetches[view.ID] = st
	// Background prefetches nobody was looking at are not stale.
	stale := c.awaited[view.ID] && c.active != view.ID
	delete(c.awaited, view.ID)
	c.recomputeVisibleLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	span.SetAttributes(telemetry.AttrCount.Int(st.Count), telemetry.AttrStale.Bool(stale))
	metrics.FetchDuration.WithLabelValues(string(view.ID)).Observe(elapsed.Seconds())
	metrics.FetchesCompleted.WithLabelValues(string(view.ID), string(st.Status)).Inc()
	if stale {
		metrics.StaleResults.WithLabelValues(string(view.ID)).Inc()
	}

	if err != nil {
		c.log.WarnContext(ctx, "fetch failed", "view", view.ID, "kind", st.Kind, "error", err, "stale", stale)
	} else {
		c.log.DebugContext(ctx, "fetch loaded", "view", view.ID, "count", st.Count, "stale", stale, "elapsed", elapsed.String())
	}

	c.notify(snap)
	c.publishCompleted(view.ID, st, stale, elapsed)
}

// recomputeVisibleLocked derives visible points from the active slot only.
func (c *Coordinator) recomputeVisibleLocked() {
	view, err := c.registry.Lookup(c.active)
	if err != nil || !view.Fetchable {
		c.visible = nil
		return
	}
	if st := c.fetches[c.active]; st.Status == domain.FetchLoaded {
		c.visible = st.Points
		return
	}
	c.visible = nil
}

func (c *Coordinator) snapshotLocked() domain.Snapshot {
	c.version++
	return c.copyLocked()
}

func (c *Coordinator) copyLocked() domain.Snapshot {
	fetches := make(map[domain.ViewID]domain.FetchState, len(c.fetches))
	for id, st := range c.fetches {
		fetches[id] = st
	}
	visible := make([]domain.PointOfInterest, len(c.visible))
	copy(visible, c.visible)
	return domain.Snapshot{
		Version:       c.version,
		ActiveView:    c.active,
		Fetches:       fetches,
		VisiblePoints: visible,
	}
}

func (c *Coordinator) notify(snap domain.Snapshot) {
	c.mu.Lock()
	subs := make([]func(domain.Snapshot), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// flyTo is fire-and-forget: camera errors are logged, never returned.
// Callers hold mu.
func (c *Coordinator) flyTo(view domain.NamedView) {
	if err := c.camera.FlyToBounds(view.Bounds, domain.FlyOptions{MaxZoom: view.Zoom}); err != nil {
		c.log.Warn("fly to bounds failed", "view", view.ID, "error", err)
	}
}

func (c *Coordinator) publishSelected(id domain.ViewID) {
	if c.events == nil {
		return
	}
	err := c.events.PublishViewSelected(c.ctx, &domain.ViewSelectedEvent{
		SessionID: c.cfg.SessionID,
		View:      id,
		At:        time.Now(),
	})
	if err != nil {
		c.log.Debug("publish view selected", "error", err)
	}
}

func (c *Coordinator) publishCompleted(id domain.ViewID, st domain.FetchState, stale bool, elapsed time.Duration) {
	if c.events == nil {
		return
	}
	err := c.events.PublishFetchCompleted(c.ctx, &domain.FetchCompletedEvent{
		SessionID: c.cfg.SessionID,
		View:      id,
		Status:    st.Status,
		Count:     st.Count,
		Reason:    st.Reason,
		Stale:     stale,
		Duration:  elapsed.Seconds(),
		At:        time.Now(),
	})
	if err != nil {
		c.log.Debug("publish fetch completed", "error", err)
	}
}
