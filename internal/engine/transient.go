package engine

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/constants"
	"github.com/ConserveLee/cookie-idle/internal/metrics"
)

// transientWatcher polls for a short-lived target and clicks it once per sighting
type transientWatcher struct {
	settings config.ModeSettings
	state    *modeState
	other    *modeState // Stationary mode, guarded across the click

	locator   Locator
	pointer   Pointer
	pointerMu *sync.Mutex
	log       Logger
	metrics   *metrics.Metrics
	persist   *persister
	publish   *publisher
}

func (w *transientWatcher) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(w.step(ctx))
		}
	}
}

func (w *transientWatcher) interval() time.Duration {
	return max(constants.MinimumTick, w.settings.Interval())
}

// step performs one poll and returns the delay until the next one
func (w *transientWatcher) step(ctx context.Context) time.Duration {
	next := w.interval()
	if ctx.Err() != nil || !w.state.enabled.Load() {
		return next
	}

	mode := config.Transient.String()
	p, ok, err := w.locator.Locate(w.settings.Template, w.settings.Confidence)
	if err != nil {
		w.metrics.Error(mode, "locate")
		w.log.Error("Transient locate failed: %v", err)
		return next
	}
	if !ok {
		w.metrics.Miss(mode)
		return next
	}
	w.metrics.Hit(mode)

	if op, err := w.clickAndRestore(p); err != nil {
		w.metrics.Error(mode, op)
		w.log.Error("Transient %s at (%d, %d) failed: %v", op, p.X, p.Y, err)
		return next
	}

	w.state.counter.add(1)
	w.metrics.Clicks(mode, 1)
	snap := w.state.counter.snapshot()
	w.log.Info("Transient target clicked at (%d, %d) (Session: %d, Total: %d)", p.X, p.Y, snap.Session, snap.Lifetime)

	w.publish.Flush()
	w.persist.Checkpoint("transient hit")
	return next
}

// clickAndRestore clicks p and puts the pointer back where it was. It holds
// the pointer lease throughout so the stationary clicker never reads the
// pointer mid-click. On failure it returns the name of the failed operation.
func (w *transientWatcher) clickAndRestore(p image.Point) (string, error) {
	w.pointerMu.Lock()
	defer w.pointerMu.Unlock()

	before := w.other.enabled.Load()
	defer func() {
		if after := w.other.enabled.Load(); after != before {
			w.other.set(before)
			w.log.Warn("Stationary mode changed to %t during a transient click, restored to %t", after, before)
		}
	}()

	original, err := w.pointer.Position()
	if err != nil {
		return "position", err
	}
	if err := w.pointer.ClickAt(p); err != nil {
		return "click", err
	}
	if err := w.pointer.MoveTo(original); err != nil {
		// The click landed, so it still counts
		w.metrics.Error(config.Transient.String(), "move")
		w.log.Warn("Transient restore to (%d, %d) failed: %v", original.X, original.Y, err)
	}
	return "", nil
}
