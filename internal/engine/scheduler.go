package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ConserveLee/cookie-idle/internal/config"
	"github.com/ConserveLee/cookie-idle/internal/constants"
	"github.com/ConserveLee/cookie-idle/internal/metrics"
)

// Deps are the collaborators the scheduler drives
type Deps struct {
	Locator Locator
	Pointer Pointer
	Store   Store  // Optional, nothing is persisted when nil
	Logger  Logger // Optional
	Metrics *metrics.Metrics
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now for grace period accounting
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// modeState is the per-mode state shared by the loops, the UI and hotkeys
type modeState struct {
	mode    config.Mode
	enabled atomic.Bool
	epoch   atomic.Uint64 // Bumped on every off to on transition
	phase   atomic.Int32
	counter *counter
}

// set stores on and reports whether the flag changed
func (st *modeState) set(on bool) bool {
	if st.enabled.Swap(on) == on {
		return false
	}
	if on {
		st.epoch.Add(1)
	}
	return true
}

// generation is one set of running loops sharing a cancel signal
type generation struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Scheduler owns both mode loops, their shared state and persistence
type Scheduler struct {
	deps Deps
	log  Logger
	now  func() time.Time

	cfgMu sync.RWMutex
	cfg   config.BotConfig

	modes     map[config.Mode]*modeState
	pointerMu sync.Mutex

	publish *publisher
	persist *persister

	runMu sync.Mutex
	gen   *generation
}

// New builds a scheduler from a loaded record. No loop runs until StartAll.
func New(rec config.Record, deps Deps, opts ...Option) *Scheduler {
	s := &Scheduler{
		deps:    deps,
		log:     deps.Logger,
		now:     time.Now,
		cfg:     rec.Config,
		modes:   make(map[config.Mode]*modeState, 2),
		publish: newPublisher(),
	}
	if s.log == nil {
		s.log = nopLogger{}
	}
	for _, m := range config.Modes() {
		s.modes[m] = &modeState{mode: m, counter: newCounter(rec.Lifetime(m))}
	}
	s.persist = newPersister(deps.Store, s.Record, s.log, deps.Metrics)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartAll (re)starts both loops with the current settings. Running loops are
// cancelled and joined first.
func (s *Scheduler) StartAll() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.gen != nil {
		s.stopLocked()
	}

	cfg := s.Config()
	ctx, cancel := context.WithCancel(context.Background())
	gen := &generation{cancel: cancel}

	watcher := s.newTransient(cfg.Transient)
	clicker := s.newStationary(cfg.Stationary)

	gen.wg.Add(2)
	go func() {
		defer gen.wg.Done()
		watcher.run(ctx)
	}()
	go func() {
		defer gen.wg.Done()
		clicker.run(ctx)
	}()
	s.gen = gen

	s.log.Info("Press %s to toggle transient detection ON/OFF", strings.ToUpper(cfg.Transient.ToggleKey))
	s.log.Info("Press %s to toggle stationary clicking ON/OFF", strings.ToUpper(cfg.Stationary.ToggleKey))
}

// StopAll cancels the loops, waits for pending checkpoints and writes a final save
func (s *Scheduler) StopAll(ctx context.Context) error {
	s.runMu.Lock()
	if s.gen != nil {
		s.stopLocked()
	}
	s.runMu.Unlock()

	if !s.persist.Wait(constants.JoinTimeout) {
		s.log.Warn("Pending checkpoints did not finish within %s", constants.JoinTimeout)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.SaveTimeout)
	defer cancel()

	err := s.persist.Save(ctx)
	if err != nil {
		s.log.Error("Final save failed: %v", err)
	}
	s.publish.Flush()
	return err
}

func (s *Scheduler) stopLocked() {
	s.gen.cancel()
	if !waitTimeout(&s.gen.wg, constants.JoinTimeout) {
		s.log.Warn("Mode loops did not stop within %s, abandoning them", constants.JoinTimeout)
	}
	s.gen = nil
}

// Running reports whether the loops are started
func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.gen != nil
}

func (s *Scheduler) newTransient(settings config.ModeSettings) *transientWatcher {
	return &transientWatcher{
		settings:  settings,
		state:     s.modes[config.Transient],
		other:     s.modes[config.Stationary],
		locator:   s.deps.Locator,
		pointer:   s.deps.Pointer,
		pointerMu: &s.pointerMu,
		log:       s.log,
		metrics:   s.deps.Metrics,
		persist:   s.persist,
		publish:   s.publish,
	}
}

func (s *Scheduler) newStationary(settings config.ModeSettings) *stationaryClicker {
	return &stationaryClicker{
		settings:  settings,
		state:     s.modes[config.Stationary],
		locator:   s.deps.Locator,
		pointer:   s.deps.Pointer,
		pointerMu: &s.pointerMu,
		log:       s.log,
		metrics:   s.deps.Metrics,
		persist:   s.persist,
		publish:   s.publish,
		now:       s.now,
		errLog:    rate.Sometimes{Interval: constants.ErrorLogInterval},
	}
}

// Listen routes key presses from src to HandleKey
func (s *Scheduler) Listen(src KeySource) {
	src.OnKeyPress(s.HandleKey)
}

// HandleKey toggles every mode bound to key. Unbound keys are ignored.
func (s *Scheduler) HandleKey(key string) {
	cfg := s.Config()
	for _, m := range config.Modes() {
		if strings.EqualFold(strings.TrimSpace(key), cfg.Mode(m).ToggleKey) {
			s.Toggle(m)
		}
	}
}

// Toggle flips m and returns the new state
func (s *Scheduler) Toggle(m config.Mode) bool {
	st, ok := s.modes[m]
	if !ok {
		return false
	}
	for {
		current := st.enabled.Load()
		if st.enabled.CompareAndSwap(current, !current) {
			if !current {
				st.epoch.Add(1)
			}
			s.changed(m, !current)
			return !current
		}
	}
}

// SetEnabled switches m on or off
func (s *Scheduler) SetEnabled(m config.Mode, on bool) {
	st, ok := s.modes[m]
	if !ok {
		return
	}
	if st.set(on) {
		s.changed(m, on)
	}
}

func (s *Scheduler) changed(m config.Mode, on bool) {
	state := "OFF"
	if on {
		state = "ON"
	}
	s.log.Info("%s mode %s", strings.ToUpper(m.String()[:1])+m.String()[1:], state)

	if !on {
		s.persist.Checkpoint(m.String() + " disabled")
	}
	s.publish.Flush()
}

// Enabled reports whether m is switched on
func (s *Scheduler) Enabled(m config.Mode) bool {
	st, ok := s.modes[m]
	return ok && st.enabled.Load()
}

// Phase returns the stationary clicker state; the transient mode is always idle
func (s *Scheduler) Phase(m config.Mode) Phase {
	st, ok := s.modes[m]
	if !ok {
		return PhaseIdle
	}
	return Phase(st.phase.Load())
}

// Counters returns the click counts of m
func (s *Scheduler) Counters(m config.Mode) Counters {
	st, ok := s.modes[m]
	if !ok {
		return Counters{}
	}
	return st.counter.snapshot()
}

// Status returns everything the UI shows for m
func (s *Scheduler) Status(m config.Mode) ModeStatus {
	c := s.Counters(m)
	return ModeStatus{
		Mode:     m,
		Enabled:  s.Enabled(m),
		Phase:    s.Phase(m),
		Session:  c.Session,
		Lifetime: c.Lifetime,
		Key:      s.Config().Mode(m).ToggleKey,
	}
}

// ResetSessionCounter zeroes the session count of m. It is not persisted.
func (s *Scheduler) ResetSessionCounter(m config.Mode) {
	st, ok := s.modes[m]
	if !ok {
		return
	}
	st.counter.resetSession()
	s.log.Info("%s session counter reset to 0", m)
	s.publish.Flush()
}

// ResetLifetimeCounter zeroes the lifetime count of m and persists it
func (s *Scheduler) ResetLifetimeCounter(m config.Mode) {
	st, ok := s.modes[m]
	if !ok {
		return
	}
	st.counter.resetLifetime()
	s.log.Info("%s total counter reset to 0", m)
	s.publish.Flush()
	s.persist.Checkpoint(m.String() + " lifetime reset")
}

// ApplySettings validates in and replaces the settings of m. On a validation
// error nothing changes. Running loops are restarted so the new settings take
// effect, then the record is saved.
func (s *Scheduler) ApplySettings(m config.Mode, in config.Input) error {
	if !m.Valid() {
		return fmt.Errorf("%w: unknown mode %s", config.ErrInvalidSettings, m)
	}

	s.cfgMu.Lock()
	next, err := in.Parse(m, s.cfg.Mode(m))
	if err != nil {
		s.cfgMu.Unlock()
		return err
	}
	for _, other := range config.Modes() {
		if other != m && s.cfg.Mode(other).ToggleKey == next.ToggleKey {
			s.cfgMu.Unlock()
			return &config.ValidationError{
				Mode:     m,
				Problems: []string{fmt.Sprintf("toggle key %s is already used by %s mode", strings.ToUpper(next.ToggleKey), other)},
			}
		}
	}
	s.cfg = s.cfg.WithMode(m, next)
	s.cfgMu.Unlock()

	s.log.Info("%s settings applied: key %s, interval %s, confidence %.2f, template %s",
		m, strings.ToUpper(next.ToggleKey), next.Interval(), next.Confidence, next.Template)

	if s.Running() {
		s.StartAll()
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.SaveTimeout)
	defer cancel()

	s.publish.Flush()
	if err := s.persist.Save(ctx); err != nil {
		s.log.Error("Saving settings failed: %v", err)
		return err
	}
	return nil
}

// Config returns the current settings of both modes
func (s *Scheduler) Config() config.BotConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// Record is the snapshot written to the store
func (s *Scheduler) Record() config.Record {
	return config.Record{
		Config:             s.Config(),
		TransientLifetime:  s.Counters(config.Transient).Lifetime,
		StationaryLifetime: s.Counters(config.Stationary).Lifetime,
	}
}

// Save writes the record synchronously
func (s *Scheduler) Save(ctx context.Context) error {
	return s.persist.Save(ctx)
}

// OnUpdate registers fn to be called after counter or state changes.
// Counter driven calls are throttled; fn must not block.
func (s *Scheduler) OnUpdate(fn func()) {
	s.publish.subscribe(fn)
}

// waitTimeout waits for wg up to timeout. On timeout the helper goroutine
// stays behind until wg completes.
func waitTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
