package subs

import (
	"context"
	"time"
)

// SweepRunner periodically sweeps a Registry, invoking onStale for every
// entry it removes so the caller can issue UNSUB for each SID.
type SweepRunner struct {
	registry *Registry
	interval time.Duration
	onStale  func(*Entry)
}

// NewSweepRunner returns a SweepRunner that sweeps registry every interval.
func NewSweepRunner(registry *Registry, interval time.Duration, onStale func(*Entry)) *SweepRunner {
	return &SweepRunner{registry: registry, interval: interval, onStale: onStale}
}

// Run blocks, sweeping on each tick, until ctx is canceled.
func (s *SweepRunner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, e := range s.registry.Sweep() {
				if s.onStale != nil {
					s.onStale(e)
				}
			}
		}
	}
}
