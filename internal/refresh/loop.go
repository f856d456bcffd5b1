// Package refresh keeps the entity table current while no job owns it.
package refresh

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/atomic"
)

// DefaultInterval is the auto-refresh period.
const DefaultInterval = 5 * time.Second

// Loop periodically calls a refresh function, skipping ticks while busy
// reports that a job owns the entity set.
type Loop struct {
	refresh  func(context.Context) error
	busy     func() bool
	ticks    *atomic.Int64
	skipped  *atomic.Int64
	interval time.Duration
}

// NewLoop creates a loop. busy may be nil.
func NewLoop(interval time.Duration, refresh func(context.Context) error, busy func() bool) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if busy == nil {
		busy = func() bool { return false }
	}
	return &Loop{
		interval: interval,
		refresh:  refresh,
		busy:     busy,
		ticks:    atomic.NewInt64(0),
		skipped:  atomic.NewInt64(0),
	}
}

// Run blocks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	l.ticks.Inc()
	if l.busy() {
		l.skipped.Inc()
		slog.Debug("Skipping auto-refresh while a job is running")
		return
	}
	if err := l.refresh(ctx); err != nil {
		slog.Debug("Auto-refresh failed", "error", err)
	}
}

// Ticks returns how many intervals elapsed.
func (l *Loop) Ticks() int64 {
	return l.ticks.Load()
}

// Skipped returns how many ticks were skipped because a job was running.
func (l *Loop) Skipped() int64 {
	return l.skipped.Load()
}
