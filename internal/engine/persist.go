package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/constants"
	"github.com/ConserveLee/cookie-idle/internal/metrics"
)

// persister writes record snapshots to the store. Saves are serialized and
// each one takes its snapshot after acquiring the write lock, so a queued
// checkpoint always writes the newest state.
type persister struct {
	store    Store
	snapshot func() config.Record
	log      Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	queued atomic.Bool

	pendingMu sync.Mutex
	active    int
	idle      chan struct{}
}

func newPersister(store Store, snapshot func() config.Record, log Logger, m *metrics.Metrics) *persister {
	return &persister{store: store, snapshot: snapshot, log: log, metrics: m}
}

// Save writes the current snapshot synchronously
func (p *persister) Save(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveLocked(ctx)
}

func (p *persister) saveLocked(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	err := p.store.Save(ctx, p.snapshot())
	p.metrics.Saved(err)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Checkpoint requests an asynchronous save. A request made while another is
// still waiting for the write lock is merged into it.
func (p *persister) Checkpoint(reason string) {
	if !p.queued.CompareAndSwap(false, true) {
		return
	}

	p.begin()
	go func() {
		defer p.end()

		p.mu.Lock()
		defer p.mu.Unlock()
		p.queued.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), constants.SaveTimeout)
		defer cancel()

		if err := p.saveLocked(ctx); err != nil {
			p.log.Error("Checkpoint (%s) failed: %v", reason, err)
			return
		}
		p.log.Debug("Checkpoint (%s) saved", reason)
	}()
}

func (p *persister) begin() {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if p.active == 0 {
		p.idle = make(chan struct{})
	}
	p.active++
}

func (p *persister) end() {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	p.active--
	if p.active == 0 {
		close(p.idle)
	}
}

// Wait blocks until no checkpoint is in flight or timeout elapsed
func (p *persister) Wait(timeout time.Duration) bool {
	p.pendingMu.Lock()
	if p.active == 0 {
		p.pendingMu.Unlock()
		return true
	}
	idle := p.idle
	p.pendingMu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-idle:
		return true
	case <-timer.C:
		return false
	}
}
