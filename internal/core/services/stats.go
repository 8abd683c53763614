package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ewilliams-labs/crossfade/internal/core/domain"
	"github.com/ewilliams-labs/crossfade/internal/core/ports"
)

const statsKey = "stats:global"

// StatsAggregator owns the global usage counters. Each mutation is applied
// to the in-memory aggregate and persisted before the lock is released.
type StatsAggregator struct {
	store ports.StateStore
	now   func() time.Time

	mu    sync.Mutex
	stats domain.GlobalStats
}

// NewStatsAggregator loads the persisted counters, starting empty when none exist.
func NewStatsAggregator(ctx context.Context, store ports.StateStore, now func() time.Time) (*StatsAggregator, error) {
	if now == nil {
		now = time.Now
	}
	a := &StatsAggregator{store: store, now: now, stats: domain.NewGlobalStats()}
	raw, err := store.GetBlob(ctx, statsKey)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return a, nil
	case err != nil:
		return nil, fmt.Errorf("stats: load: %w", err)
	}
	if err := json.Unmarshal(raw, &a.stats); err != nil {
		return nil, fmt.Errorf("stats: decode: %w", err)
	}
	a.stats.Normalize()
	return a, nil
}

// RecordRequest counts one request; empty genre or mood are not counted.
func (a *StatsAggregator) RecordRequest(ctx context.Context, genre, mood string) error {
	return a.mutate(ctx, func(g *domain.GlobalStats) bool {
		g.Record(genre, mood, a.now())
		return true
	})
}

// UserJoined adds userID to the active set.
func (a *StatsAggregator) UserJoined(ctx context.Context, userID string) error {
	return a.mutate(ctx, func(g *domain.GlobalStats) bool { return g.Join(userID) })
}

// UserLeft removes userID from the active set.
func (a *StatsAggregator) UserLeft(ctx context.Context, userID string) error {
	return a.mutate(ctx, func(g *domain.GlobalStats) bool { return g.Leave(userID) })
}

// Snapshot returns the totals and rankings.
func (a *StatsAggregator) Snapshot() domain.StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.Snapshot()
}

func (a *StatsAggregator) mutate(ctx context.Context, fn func(*domain.GlobalStats) bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !fn(&a.stats) {
		return nil
	}
	raw, err := json.Marshal(a.stats)
	if err != nil {
		return fmt.Errorf("stats: encode: %w", err)
	}
	if err := a.store.PutBlob(ctx, statsKey, raw); err != nil {
		return fmt.Errorf("stats: save: %w", err)
	}
	return nil
}
