package usecases

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/cityview/internal/core/domain"
)

// ViewFetchStats aggregates fetch outcomes for one view across all sessions.
type ViewFetchStats struct {
	View        domain.ViewID      `json:"view"`
	Loaded      int                `json:"loaded"`
	Failed      int                `json:"failed"`
	Stale       int                `json:"stale"`
	LastStatus  domain.FetchStatus `json:"last_status,omitempty"`
	LastCount   int                `json:"last_count"`
	LastReason  string             `json:"last_reason,omitempty"`
	AvgDuration float64            `json:"avg_duration_seconds"`
	LastAt      time.Time          `json:"last_at"`
}

// FetchStats is an in-memory aggregate fed from the event stream.
type FetchStats struct {
	mu    sync.RWMutex
	views map[domain.ViewID]*ViewFetchStats
	total map[domain.ViewID]float64
}

// NewFetchStats creates an empty aggregate.
func NewFetchStats() *FetchStats {
	return &FetchStats{
		views: make(map[domain.ViewID]*ViewFetchStats),
		total: make(map[domain.ViewID]float64),
	}
}

// Record folds one event into the aggregate. It matches the subscriber
// handler signature.
func (s *FetchStats) Record(_ context.Context, e *domain.FetchCompletedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.views[e.View]
	if !ok {
		v = &ViewFetchStats{View: e.View}
		s.views[e.View] = v
	}

	switch e.Status {
	case domain.FetchLoaded:
		v.Loaded++
	case domain.FetchFailed:
		v.Failed++
	}
	if e.Stale {
		v.Stale++
	}

	s.total[e.View] += e.Duration
	if n := v.Loaded + v.Failed; n > 0 {
		v.AvgDuration = s.total[e.View] / float64(n)
	}

	if !e.At.Before(v.LastAt) {
		v.LastStatus = e.Status
		v.LastCount = e.Count
		v.LastReason = e.Reason
		v.LastAt = e.At
	}
	return nil
}

// Snapshot returns the aggregate sorted by view id.
func (s *FetchStats) Snapshot() []ViewFetchStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ViewFetchStats, 0, len(s.views))
	for _, v := range s.views {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].View < out[j].View })
	return out
}
