package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// workerPool is one acquisition cycle's set of click workers
type workerPool struct {
	id          string
	size        int
	shouldClick atomic.Bool
	running     atomic.Int32

	cancel context.CancelFunc
	done   chan struct{}
}

// startPool launches size workers running work until it returns or ctx is done
func startPool(ctx context.Context, size int, work func(ctx context.Context, pool *workerPool) error) *workerPool {
	ctx, cancel := context.WithCancel(ctx)
	p := &workerPool{
		id:     uuid.NewString(),
		size:   size,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.shouldClick.Store(true)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		p.running.Add(1)
		g.Go(func() error {
			defer p.running.Add(-1)
			return work(gctx, p)
		})
	}

	go func() {
		_ = g.Wait()
		close(p.done)
	}()

	return p
}

// stop clears shouldClick, cancels the workers and waits up to timeout.
// It returns the number of workers still running when it gave up.
func (p *workerPool) stop(timeout time.Duration) int {
	p.shouldClick.Store(false)
	p.cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return 0
	case <-timer.C:
		return int(p.running.Load())
	}
}

// finished reports whether every worker has returned
func (p *workerPool) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// shortID is the first block of the pool id, enough to tell pools apart in logs
func (p *workerPool) shortID() string {
	if len(p.id) < 8 {
		return p.id
	}
	return p.id[:8]
}
