// Package engine runs the two clicking modes: a transient watcher that polls
// for a short-lived target and a stationary clicker that drives a worker pool
// against a fixed one. The Scheduler owns both and is the only exported entry point.
package engine

import (
	"context"
	"errors"
	"image"

	"github.com/ConserveLee/cookie-idle/internal/config"
)

// Locator finds a template on screen. A miss is (zero, false, nil).
type Locator interface {
	Locate(template string, confidence float64) (image.Point, bool, error)
}

// Pointer drives the mouse
type Pointer interface {
	Click() error
	ClickAt(p image.Point) error
	MoveTo(p image.Point) error
	Position() (image.Point, error)
}

// Logger is the printf style logger used by the loops
type Logger interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// Store persists the record
type Store interface {
	Save(ctx context.Context, rec config.Record) error
}

// KeySource emits named key presses such as "F8"
type KeySource interface {
	OnKeyPress(fn func(key string))
}

// ErrPersist wraps every failed save
var ErrPersist = errors.New("persist settings")

// Phase is the stationary clicker state
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAcquiring
	PhaseAcquired
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAcquiring:
		return "acquiring"
	case PhaseAcquired:
		return "acquired"
	default:
		return "unknown"
	}
}

// ModeStatus is what the UI shows for one mode
type ModeStatus struct {
	Mode     config.Mode
	Enabled  bool
	Phase    Phase // Always PhaseIdle for the transient mode
	Session  uint64
	Lifetime uint64
	Key      string
}
