package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/ConserveLee/cookie-idle/internal/config"
)

type locateResult struct {
	p   image.Point
	ok  bool
	err error
}

// fakeLocator replays queued results, then keeps returning fallback
type fakeLocator struct {
	mu       sync.Mutex
	queue    []locateResult
	fallback locateResult
	calls    int
	lastConf float64
}

func (l *fakeLocator) Locate(template string, confidence float64) (image.Point, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.lastConf = confidence
	if len(l.queue) > 0 {
		r := l.queue[0]
		l.queue = l.queue[1:]
		return r.p, r.ok, r.err
	}
	return l.fallback.p, l.fallback.ok, l.fallback.err
}

func (l *fakeLocator) push(results ...locateResult) {
	l.mu.Lock()
	l.queue = append(l.queue, results...)
	l.mu.Unlock()
}

func (l *fakeLocator) setFallback(r locateResult) {
	l.mu.Lock()
	l.fallback = r
	l.mu.Unlock()
}

func (l *fakeLocator) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func hit(x, y int) locateResult { return locateResult{p: image.Pt(x, y), ok: true} }

// fakePointer tracks the pointer position and every click
type fakePointer struct {
	mu       sync.Mutex
	pos      image.Point
	clicks   int
	clicked  []image.Point
	moves    []image.Point
	clickErr error
	onClick  func()

	// clickDelay slows Click down so worker pools do not spin; set before use
	clickDelay time.Duration
}

func (p *fakePointer) Click() error {
	if p.clickDelay > 0 {
		time.Sleep(p.clickDelay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clickErr != nil {
		return p.clickErr
	}
	p.clicks++
	return nil
}

func (p *fakePointer) ClickAt(pt image.Point) error {
	p.mu.Lock()
	hook := p.onClick
	if p.clickErr != nil {
		p.mu.Unlock()
		return p.clickErr
	}
	p.pos = pt
	p.clicks++
	p.clicked = append(p.clicked, pt)
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (p *fakePointer) MoveTo(pt image.Point) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pt
	p.moves = append(p.moves, pt)
	return nil
}

func (p *fakePointer) Position() (image.Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos, nil
}

func (p *fakePointer) SetPosition(pt image.Point) {
	p.mu.Lock()
	p.pos = pt
	p.mu.Unlock()
}

func (p *fakePointer) Clicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks
}

func (p *fakePointer) Moves() []image.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]image.Point(nil), p.moves...)
}

func (p *fakePointer) Clicked() []image.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]image.Point(nil), p.clicked...)
}

// fakeStore records saves and can be told to fail
type fakeStore struct {
	mu    sync.Mutex
	saves []config.Record
	err   error
}

func (s *fakeStore) Save(_ context.Context, rec config.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saves = append(s.saves, rec)
	return nil
}

func (s *fakeStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *fakeStore) Last() config.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return config.Record{}
	}
	return s.saves[len(s.saves)-1]
}

func (s *fakeStore) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

var errDisk = errors.New("disk full")

// fakeLogger keeps every line by level
type fakeLogger struct {
	mu    sync.Mutex
	lines map[string][]string
}

func (l *fakeLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lines == nil {
		l.lines = make(map[string][]string)
	}
	l.lines[level] = append(l.lines[level], fmt.Sprintf(format, args...))
}

func (l *fakeLogger) Info(format string, args ...interface{})  { l.add("info", format, args...) }
func (l *fakeLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args...) }
func (l *fakeLogger) Error(format string, args ...interface{}) { l.add("error", format, args...) }
func (l *fakeLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args...) }

func (l *fakeLogger) Lines(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines[level]...)
}

// fakeClock is advanced by hand
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeKeys struct {
	fn func(string)
}

func (k *fakeKeys) OnKeyPress(fn func(string)) { k.fn = fn }

func (k *fakeKeys) press(key string) { k.fn(key) }

type harness struct {
	sched   *Scheduler
	locator *fakeLocator
	pointer *fakePointer
	store   *fakeStore
	log     *fakeLogger
	clock   *fakeClock
}

func newHarness(rec config.Record) *harness {
	h := &harness{
		locator: &fakeLocator{},
		pointer: &fakePointer{clickDelay: time.Millisecond},
		store:   &fakeStore{},
		log:     &fakeLogger{},
		clock:   newFakeClock(),
	}
	h.sched = New(rec, Deps{
		Locator: h.locator,
		Pointer: h.pointer,
		Store:   h.store,
		Logger:  h.log,
	}, WithClock(h.clock.Now))
	return h
}
