package engine

import (
	"context"
	"image"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/constants"
	"github.com/ConserveLee/cookie-idle/internal/metrics"
)

// stationaryClicker locks onto a fixed target and hammers it with a worker
// pool until the user moves the pointer away or the mode is switched off.
// All fields below settings are owned by the supervision goroutine.
type stationaryClicker struct {
	settings config.ModeSettings
	state    *modeState

	locator   Locator
	pointer   Pointer
	pointerMu *sync.Mutex
	log       Logger
	metrics   *metrics.Metrics
	persist   *persister
	publish   *publisher
	now       func() time.Time

	errLog rate.Sometimes

	target     image.Point
	hasTarget  bool
	acquiredAt time.Time
	epoch      uint64 // Enable epoch the target was acquired under
	pool       *workerPool
}

func (c *stationaryClicker) run(ctx context.Context) {
	defer c.shutdown()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(c.tick(ctx))
		}
	}
}

// tick runs one supervision step and returns the delay until the next one
func (c *stationaryClicker) tick(ctx context.Context) time.Duration {
	if ctx.Err() != nil {
		return constants.SupervisionTick
	}

	if !c.state.enabled.Load() {
		if c.hasTarget || c.pool != nil {
			c.release("disabled")
		}
		c.setPhase(PhaseIdle)
		return constants.SupervisionTick
	}

	// Switched off and on again between two ticks: the workers have seen the
	// off state and exited, and the target may be stale
	if c.hasTarget && c.state.epoch.Load() != c.epoch {
		c.release("re-enabled")
	}

	if !c.hasTarget {
		c.setPhase(PhaseAcquiring)
		if !c.acquire() {
			return constants.SupervisionTick
		}
	}

	c.supervise(ctx)
	return constants.SupervisionTick
}

func (c *stationaryClicker) acquire() bool {
	mode := config.Stationary.String()
	epoch := c.state.epoch.Load()

	p, ok, err := c.locator.Locate(c.settings.Template, c.settings.Confidence)
	if err != nil {
		c.metrics.Error(mode, "locate")
		c.errLog.Do(func() { c.log.Error("Stationary locate failed: %v", err) })
		return false
	}
	if !ok {
		c.metrics.Miss(mode)
		return false
	}
	c.metrics.Hit(mode)

	c.pointerMu.Lock()
	defer c.pointerMu.Unlock()

	pos, err := c.pointer.Position()
	if err != nil || Distance(pos, p) > constants.MoveSkipRadius {
		if err := c.pointer.MoveTo(p); err != nil {
			c.metrics.Error(mode, "move")
			c.errLog.Do(func() { c.log.Error("Stationary move to (%d, %d) failed: %v", p.X, p.Y, err) })
			return false
		}
	}

	c.target = p
	c.hasTarget = true
	c.acquiredAt = c.now()
	c.epoch = epoch
	c.setPhase(PhaseAcquired)
	c.log.Info("Stationary target found at (%d, %d), pointer positioned", p.X, p.Y)
	return true
}

func (c *stationaryClicker) supervise(ctx context.Context) {
	if c.pool != nil && c.pool.finished() {
		c.release("workers exited")
		c.setPhase(PhaseAcquiring)
		return
	}

	if c.now().Sub(c.acquiredAt) >= constants.GracePeriod {
		// The transient watcher owns the pointer while it clicks and restores
		if !c.pointerMu.TryLock() {
			return
		}
		pos, err := c.pointer.Position()
		c.pointerMu.Unlock()

		if err != nil {
			c.metrics.Error(config.Stationary.String(), "position")
			c.errLog.Do(func() { c.log.Error("Stationary position read failed: %v", err) })
			return
		}

		if Displaced(c.target, pos, constants.DisplacementTolerance) {
			if c.state.enabled.CompareAndSwap(true, false) {
				c.log.Info("Pointer moved by user to (%d, %d), stopping stationary clicker", pos.X, pos.Y)
			}
			c.release("displaced")
			c.setPhase(PhaseIdle)
			return
		}
	}

	if c.pool == nil {
		c.startWorkers(ctx)
	}
}

func (c *stationaryClicker) startWorkers(ctx context.Context) {
	size := c.settings.WorkerCount()

	var limiter *rate.Limiter
	flushEvery := constants.FlushEvery
	if interval := c.settings.Interval(); interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
		flushEvery = 1
	}

	c.pool = startPool(ctx, size, func(ctx context.Context, pool *workerPool) error {
		return c.work(ctx, pool, limiter, flushEvery)
	})
	c.log.Info("Starting %d click worker(s), pool %s", size, c.pool.shortID())
}

// work is the body of one click worker
func (c *stationaryClicker) work(ctx context.Context, pool *workerPool, limiter *rate.Limiter, flushEvery int) error {
	c.metrics.AddWorkers(1)
	defer c.metrics.AddWorkers(-1)

	local := 0
	defer func() { c.flush(local) }()

	for pool.shouldClick.Load() && c.state.enabled.Load() && ctx.Err() == nil {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			if !pool.shouldClick.Load() || !c.state.enabled.Load() {
				return nil
			}
		}

		if err := c.pointer.Click(); err != nil {
			c.metrics.Error(config.Stationary.String(), "click")
			c.errLog.Do(func() { c.log.Error("Stationary click failed: %v", err) })
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(constants.WorkerErrorPause):
			}
			continue
		}

		local++
		if local >= flushEvery {
			c.flush(local)
			local = 0
		}
	}
	return nil
}

func (c *stationaryClicker) flush(n int) {
	if n <= 0 {
		return
	}
	c.metrics.Clicks(config.Stationary.String(), n)
	crossed := c.state.counter.add(uint64(n))
	c.publish.Publish()

	if crossed {
		snap := c.state.counter.snapshot()
		c.log.Info("Stationary clicks: session %s, total %s", FormatCount(snap.Session), FormatCount(snap.Lifetime))
		c.persist.Checkpoint("stationary clicks")
	}
}

// release tears the pool down and forgets the target so the next enable re-acquires
func (c *stationaryClicker) release(reason string) {
	c.stopWorkers()
	c.hasTarget = false
	c.acquiredAt = time.Time{}

	snap := c.state.counter.snapshot()
	c.log.Info("Stationary clicker stopped (%s). Session: %d, Total: %d", reason, snap.Session, snap.Lifetime)
	c.publish.Flush()
	c.persist.Checkpoint("stationary " + reason)
}

func (c *stationaryClicker) stopWorkers() {
	if c.pool == nil {
		return
	}
	if left := c.pool.stop(constants.JoinTimeout); left > 0 {
		c.log.Warn("Pool %s: %d worker(s) did not stop within %s, abandoning them", c.pool.shortID(), left, constants.JoinTimeout)
	}
	c.pool = nil
}

// shutdown runs when the generation is cancelled. The final save is left to StopAll.
func (c *stationaryClicker) shutdown() {
	c.stopWorkers()
	c.hasTarget = false
	c.setPhase(PhaseIdle)
	c.publish.Flush()
}

func (c *stationaryClicker) setPhase(p Phase) {
	c.state.phase.Store(int32(p))
}
