package engine

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/ConserveLee/cookie-idle/internal/constants"
)

// publisher fans counter and state changes out to UI listeners. Publish is
// throttled to one notification per PublishInterval, Flush always notifies.
type publisher struct {
	mu        sync.RWMutex
	listeners []func()
	gate      rate.Sometimes
}

func newPublisher() *publisher {
	return &publisher{gate: rate.Sometimes{Interval: constants.PublishInterval}}
}

func (p *publisher) subscribe(fn func()) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

func (p *publisher) Publish() {
	p.gate.Do(p.notify)
}

func (p *publisher) Flush() {
	p.notify()
}

func (p *publisher) notify() {
	p.mu.RLock()
	listeners := p.listeners
	p.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
