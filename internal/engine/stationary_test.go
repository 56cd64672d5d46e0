package engine

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/constants"
)

func newStationary(t *testing.T, rec config.Record) (*harness, *stationaryClicker, context.Context) {
	t.Helper()
	h := newHarness(rec)
	ctx, cancel := context.WithCancel(context.Background())
	c := h.sched.newStationary(h.sched.Config().Stationary)
	t.Cleanup(func() {
		cancel()
		c.shutdown()
	})
	return h, c, ctx
}

func countLines(lines []string, substr string) int {
	n := 0
	for _, l := range lines {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func TestStationaryDisplacementAfterGraceDisablesOnce(t *testing.T) {
	h, c, ctx := newStationary(t, config.Default())
	h.locator.push(hit(200, 150))
	h.sched.SetEnabled(config.Stationary, true)

	c.tick(ctx)
	require.Equal(t, PhaseAcquired, h.sched.Phase(config.Stationary))
	assert.Equal(t, []image.Point{{200, 150}}, h.pointer.Moves())
	require.NotNil(t, c.pool)
	pool := c.pool
	assert.Equal(t, constants.FastWorkerCount, pool.size)

	// Moves during the grace period are ignored
	h.clock.Advance(300 * time.Millisecond)
	h.pointer.SetPosition(image.Pt(230, 150))
	c.tick(ctx)
	assert.True(t, h.sched.Enabled(config.Stationary))
	assert.Same(t, pool, c.pool)

	h.clock.Advance(300 * time.Millisecond)
	c.tick(ctx)

	assert.False(t, h.sched.Enabled(config.Stationary))
	assert.Equal(t, PhaseIdle, h.sched.Phase(config.Stationary))
	assert.Nil(t, c.pool)
	assert.False(t, c.hasTarget)
	assert.False(t, pool.shouldClick.Load())
	select {
	case <-pool.done:
	default:
		t.Fatal("worker pool still running after displacement")
	}

	// Every click a worker made was flushed into the counters
	assert.Equal(t, uint64(h.pointer.Clicks()), h.sched.Counters(config.Stationary).Session)

	c.tick(ctx)
	c.tick(ctx)
	assert.Equal(t, 1, countLines(h.log.Lines("info"), "Pointer moved by user"))
	assert.Equal(t, 1, h.locator.Calls())

	require.True(t, h.sched.persist.Wait(time.Second))
	assert.GreaterOrEqual(t, h.store.Saves(), 1)
}

func TestStationaryReenableReacquires(t *testing.T) {
	h, c, ctx := newStationary(t, config.Default())
	h.locator.push(hit(200, 150), hit(400, 300))
	h.sched.SetEnabled(config.Stationary, true)

	c.tick(ctx)
	require.Equal(t, PhaseAcquired, h.sched.Phase(config.Stationary))

	h.sched.SetEnabled(config.Stationary, false)
	c.tick(ctx)
	assert.Equal(t, PhaseIdle, h.sched.Phase(config.Stationary))
	assert.Nil(t, c.pool)

	h.sched.SetEnabled(config.Stationary, true)
	c.tick(ctx)

	assert.Equal(t, 2, h.locator.Calls())
	assert.Equal(t, PhaseAcquired, h.sched.Phase(config.Stationary))
	assert.Equal(t, image.Pt(400, 300), c.target)
	assert.Equal(t, []image.Point{{200, 150}, {400, 300}}, h.pointer.Moves())
}

func TestStationaryAcquireSkipsMoveWhenClose(t *testing.T) {
	h, c, ctx := newStationary(t, config.Default())
	h.pointer.SetPosition(image.Pt(205, 153))
	h.locator.push(hit(200, 150))
	h.sched.SetEnabled(config.Stationary, true)

	c.tick(ctx)

	assert.Equal(t, PhaseAcquired, h.sched.Phase(config.Stationary))
	assert.Empty(t, h.pointer.Moves())
}

func TestStationaryStaysAcquiringOnMissOrError(t *testing.T) {
	h, c, ctx := newStationary(t, config.Default())
	h.locator.push(locateResult{}, locateResult{err: errors.New("capture failed")}, locateResult{err: errors.New("capture failed")})
	h.sched.SetEnabled(config.Stationary, true)

	for i := 0; i < 3; i++ {
		c.tick(ctx)
		assert.Equal(t, PhaseAcquiring, h.sched.Phase(config.Stationary))
		assert.Nil(t, c.pool)
	}
	assert.True(t, h.sched.Enabled(config.Stationary))
	// Repeated errors within a second are logged once
	assert.Len(t, h.log.Lines("error"), 1)
}

func TestStationarySmallMovesKeepClicking(t *testing.T) {
	h, c, ctx := newStationary(t, config.Default())
	h.locator.push(hit(200, 150))
	h.sched.SetEnabled(config.Stationary, true)
	c.tick(ctx)

	h.clock.Advance(time.Second)
	h.pointer.SetPosition(image.Pt(208, 141))
	c.tick(ctx)

	assert.True(t, h.sched.Enabled(config.Stationary))
	assert.NotNil(t, c.pool)
	assert.Eventually(t, func() bool {
		return h.sched.Counters(config.Stationary).Session > 0
	}, time.Second, 10*time.Millisecond)
}

func TestStationaryCheckSkippedWhilePointerLeased(t *testing.T) {
	h, c, ctx := newStationary(t, config.Default())
	h.locator.push(hit(200, 150))
	h.sched.SetEnabled(config.Stationary, true)
	c.tick(ctx)

	h.clock.Advance(time.Second)
	h.pointer.SetPosition(image.Pt(10, 10))

	h.sched.pointerMu.Lock()
	c.tick(ctx)
	assert.True(t, h.sched.Enabled(config.Stationary))
	h.sched.pointerMu.Unlock()

	c.tick(ctx)
	assert.False(t, h.sched.Enabled(config.Stationary))
}

func TestStationaryIntervalUsesSingleLimitedWorker(t *testing.T) {
	rec := config.Default()
	rec.Config.Stationary.IntervalMillis = 20
	h, c, ctx := newStationary(t, rec)
	h.locator.push(hit(200, 150))
	h.sched.SetEnabled(config.Stationary, true)

	c.tick(ctx)
	require.NotNil(t, c.pool)
	assert.Equal(t, 1, c.pool.size)

	assert.Eventually(t, func() bool {
		return h.sched.Counters(config.Stationary).Session >= 3
	}, 2*time.Second, 10*time.Millisecond)

	h.sched.SetEnabled(config.Stationary, false)
	c.tick(ctx)
	assert.Nil(t, c.pool)
	assert.Equal(t, uint64(h.pointer.Clicks()), h.sched.Counters(config.Stationary).Session)
}

func TestStationaryFlushCheckpointsEvery500(t *testing.T) {
	h, c, _ := newStationary(t, config.Default())

	c.flush(499)
	require.True(t, h.sched.persist.Wait(time.Second))
	assert.Zero(t, h.store.Saves())

	c.flush(1)
	require.True(t, h.sched.persist.Wait(time.Second))
	assert.Equal(t, 1, h.store.Saves())
	assert.Equal(t, uint64(500), h.store.Last().StationaryLifetime)
}

func TestStationaryCancelStopsPool(t *testing.T) {
	h := newHarness(config.Default())
	h.locator.setFallback(hit(200, 150))
	h.sched.SetEnabled(config.Stationary, true)

	ctx, cancel := context.WithCancel(context.Background())
	c := h.sched.newStationary(h.sched.Config().Stationary)
	done := make(chan struct{})
	go func() {
		c.run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return h.pointer.Clicks() > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stationary loop did not exit")
	}
	assert.Equal(t, PhaseIdle, h.sched.Phase(config.Stationary))
	assert.True(t, h.sched.Enabled(config.Stationary), "cancellation is not a user disable")
}

func waitPoolDone(t *testing.T, pool *workerPool) {
	t.Helper()
	select {
	case <-pool.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker pool did not stop")
	}
}

func TestStationaryQuickReenableBetweenTicksReacquires(t *testing.T) {
	h, c, ctx := newStationary(t, config.Default())
	h.locator.push(hit(200, 150), hit(400, 300))
	h.sched.SetEnabled(config.Stationary, true)

	c.tick(ctx)
	require.NotNil(t, c.pool)
	old := c.pool
	assert.Eventually(t, func() bool { return h.pointer.Clicks() > 0 }, time.Second, 5*time.Millisecond)

	// Off and on again with no tick in between; the workers see the off state and exit
	h.sched.SetEnabled(config.Stationary, false)
	waitPoolDone(t, old)
	h.sched.SetEnabled(config.Stationary, true)
	before := h.pointer.Clicks()

	c.tick(ctx)

	assert.Equal(t, 2, h.locator.Calls())
	assert.Equal(t, image.Pt(400, 300), c.target)
	assert.Equal(t, PhaseAcquired, h.sched.Phase(config.Stationary))
	require.NotNil(t, c.pool)
	assert.NotSame(t, old, c.pool)
	assert.Eventually(t, func() bool { return h.pointer.Clicks() > before }, time.Second, 5*time.Millisecond)
}

func TestStationaryResumesAfterTransientRestoresFlag(t *testing.T) {
	h, c, ctx := newStationary(t, config.Default())
	h.locator.setFallback(hit(200, 150))
	h.sched.SetEnabled(config.Stationary, true)
	h.sched.SetEnabled(config.Transient, true)

	c.tick(ctx)
	require.NotNil(t, c.pool)
	old := c.pool
	assert.Eventually(t, func() bool { return h.pointer.Clicks() > 0 }, time.Second, 5*time.Millisecond)

	// A click backend that clears the stationary flag; the watcher puts it back
	h.pointer.mu.Lock()
	h.pointer.onClick = func() {
		h.sched.modes[config.Stationary].enabled.Store(false)
		waitPoolDone(t, old)
	}
	h.pointer.mu.Unlock()

	w := h.sched.newTransient(h.sched.Config().Transient)
	w.step(ctx)
	require.True(t, h.sched.Enabled(config.Stationary))
	calls := h.locator.Calls()
	before := h.pointer.Clicks()

	c.tick(ctx)

	assert.Equal(t, calls+1, h.locator.Calls())
	require.NotNil(t, c.pool)
	assert.NotSame(t, old, c.pool)
	assert.Eventually(t, func() bool { return h.pointer.Clicks() > before }, time.Second, 5*time.Millisecond)
}

func TestStationaryRestartsWhenWorkersExit(t *testing.T) {
	h, c, ctx := newStationary(t, config.Default())
	h.locator.setFallback(hit(200, 150))
	h.sched.SetEnabled(config.Stationary, true)

	c.tick(ctx)
	require.NotNil(t, c.pool)
	old := c.pool
	old.shouldClick.Store(false)
	waitPoolDone(t, old)

	c.tick(ctx)
	assert.Nil(t, c.pool)
	assert.Equal(t, PhaseAcquiring, h.sched.Phase(config.Stationary))
	assert.True(t, h.sched.Enabled(config.Stationary))

	c.tick(ctx)
	assert.Equal(t, 2, h.locator.Calls())
	require.NotNil(t, c.pool)
	assert.NotSame(t, old, c.pool)
	assert.False(t, c.pool.finished())
}
