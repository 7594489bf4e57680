// Package service provides the process lifecycle: hydrate-then-run startup,
// background workers, and idempotent shutdown.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/neofeeds/pkg/logging"
)

// BaseService provides hydrate/worker wiring and stop handling:
// safe stop channel management (sync.Once prevents double-close panic),
// an optional hydration hook executed before workers start, and a
// statistics provider for the health surface.
type BaseService struct {
	id      string
	name    string
	version string
	log     *logging.Logger

	stopCh   chan struct{}
	stopOnce sync.Once

	hydrate func(context.Context) error
	statsFn func() map[string]any

	workers []func(context.Context)

	healthMu  sync.RWMutex
	startTime time.Time
}

// NewBase constructs a BaseService.
func NewBase(id, name, version string, log *logging.Logger) *BaseService {
	return &BaseService{
		id:      id,
		name:    name,
		version: version,
		log:     log,
		stopCh:  make(chan struct{}),
	}
}

// Name returns the service name.
func (b *BaseService) Name() string { return b.name }

// Version returns the service version.
func (b *BaseService) Version() string { return b.version }

// WithHydrate sets an optional hydrate hook executed during Start, before
// background workers are launched.
func (b *BaseService) WithHydrate(fn func(context.Context) error) *BaseService {
	b.hydrate = fn
	return b
}

// WithStats sets a statistics provider consulted by Stats.
func (b *BaseService) WithStats(fn func() map[string]any) *BaseService {
	b.statsFn = fn
	return b
}

// AddWorker registers a background worker started after hydrate completes.
// Workers should respect context cancellation and monitor StopChan.
func (b *BaseService) AddWorker(fn func(context.Context)) *BaseService {
	b.workers = append(b.workers, fn)
	return b
}

// AddTickerWorker registers a periodic background worker running fn at the
// given interval until Stop is called.
func (b *BaseService) AddTickerWorker(interval time.Duration, fn func(context.Context) error) *BaseService {
	worker := func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					b.log.WithError(err).WithField("worker_service", b.name).Warn("worker error")
				}
			}
		}
	}
	b.workers = append(b.workers, worker)
	return b
}

// StopChan exposes the stop channel for worker goroutines.
func (b *BaseService) StopChan() <-chan struct{} {
	return b.stopCh
}

// Start runs hydrate once, then spins workers.
func (b *BaseService) Start(ctx context.Context) error {
	b.healthMu.Lock()
	if b.startTime.IsZero() {
		b.startTime = time.Now()
	}
	b.healthMu.Unlock()

	if b.hydrate != nil {
		if err := b.hydrate(ctx); err != nil {
			return fmt.Errorf("hydrate: %w", err)
		}
	}

	for _, w := range b.workers {
		worker := w
		go worker(ctx)
	}

	b.log.WithFields(map[string]interface{}{
		"id":      b.id,
		"version": b.version,
		"workers": len(b.workers),
	}).Info("service started")
	return nil
}

// Stop signals workers. Idempotent.
func (b *BaseService) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.log.WithField("id", b.id).Info("service stopped")
	})
	return nil
}

// WorkerCount returns the number of registered workers.
func (b *BaseService) WorkerCount() int {
	return len(b.workers)
}

// Stats returns runtime statistics, merging the provider's values with
// uptime information.
func (b *BaseService) Stats() map[string]any {
	b.healthMu.RLock()
	startTime := b.startTime
	b.healthMu.RUnlock()

	stats := map[string]any{
		"service": b.name,
		"version": b.version,
	}
	if !startTime.IsZero() {
		stats["uptime"] = time.Since(startTime).String()
	}
	if b.statsFn != nil {
		for k, v := range b.statsFn() {
			stats[k] = v
		}
	}
	return stats
}
