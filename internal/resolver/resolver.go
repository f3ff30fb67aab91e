// Package resolver drives the raw-event state machine: a periodic sweep
// that moves pending ingestion events to their terminal states.
package resolver

import (
	"context"
	"time"

	"github.com/obeidat/ledgerline/internal/common"
	"github.com/obeidat/ledgerline/internal/service"
)

// Defaults for the sweep cadence.
const (
	DefaultInterval  = 5 * time.Minute
	DefaultStaleness = 15 * time.Minute

	// Pending events older than this indicate the importer is not keeping
	// up; the sweep logs a warning when it sees them.
	stalenessAlarm = time.Hour
)

// Resolver periodically resolves pending raw events.
type Resolver struct {
	store     service.Storage
	interval  time.Duration
	staleness time.Duration
}

// New creates a resolver. Non-positive durations get the defaults.
func New(store service.Storage, interval, staleness time.Duration) *Resolver {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Resolver{
		store:     store,
		interval:  interval,
		staleness: staleness,
	}
}

// RunOnce performs a single sweep and returns its transition counts.
// Sweeps are idempotent: terminal events are never revisited, so running
// concurrently with an import is safe.
func (r *Resolver) RunOnce(ctx context.Context) (*service.ResolveStats, error) {
	stats, err := r.store.ResolveRawEvents(ctx, r.staleness)
	if err != nil {
		return nil, err
	}

	if stats.Total() > 0 {
		common.LogInfo("Resolved raw events", common.Fields{
			"linked":  stats.Linked,
			"ignored": stats.Ignored,
			"failed":  stats.Failed,
		})
	}

	count, oldest, err := r.store.StalePending(ctx, stalenessAlarm)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		fields := common.Fields{"count": count}
		if oldest != nil {
			fields["oldest_age"] = time.Since(*oldest).Round(time.Minute).String()
		}
		common.LogInfo("Stale pending raw events", fields)
	}

	return stats, nil
}

// Run sweeps immediately, then on every interval tick until the context
// is cancelled. Sweep failures are logged and the loop keeps going; only
// cancellation stops it.
func (r *Resolver) Run(ctx context.Context) error {
	if _, err := r.RunOnce(ctx); err != nil {
		common.LogError(err, "Resolver sweep failed", nil)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				common.LogError(err, "Resolver sweep failed", nil)
			}
		}
	}
}
