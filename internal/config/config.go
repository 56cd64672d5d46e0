// Package config holds the bot settings for both clicking modes, the persisted
// record layout and the validation applied to user supplied settings.
package config

import (
	"fmt"
	"time"

	"github.com/ConserveLee/cookie-idle/internal/constants"
)

// Mode identifies one of the two automation modes
type Mode int

const (
	Transient  Mode = iota // Poll for a target that appears and disappears (golden cookie)
	Stationary             // Lock onto a fixed target and click it continuously (big cookie)
)

// Modes lists every mode in a stable order
func Modes() []Mode {
	return []Mode{Transient, Stationary}
}

func (m Mode) String() string {
	switch m {
	case Transient:
		return "transient"
	case Stationary:
		return "stationary"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == Transient || m == Stationary
}

// ModeSettings holds the per-mode configuration
type ModeSettings struct {
	ToggleKey       string  `yaml:"toggle_key" validate:"fkey"`
	IntervalSeconds int     `yaml:"interval_sec" validate:"gte=0,lte=1800"`
	IntervalMillis  int     `yaml:"interval_ms" validate:"gte=0,lte=999"`
	Confidence      float64 `yaml:"confidence" validate:"gte=0,lte=1"`
	Template        string  `yaml:"template" validate:"required"`
}

// Interval is the configured delay between polls (transient) or clicks (stationary).
// Zero means as fast as possible.
func (s ModeSettings) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds)*time.Second + time.Duration(s.IntervalMillis)*time.Millisecond
}

// WorkerCount is the size of the stationary click pool for these settings
func (s ModeSettings) WorkerCount() int {
	if s.Interval() == 0 {
		return constants.FastWorkerCount
	}
	return 1
}

// BotConfig is the configuration of both modes
type BotConfig struct {
	Transient  ModeSettings
	Stationary ModeSettings
}

// Mode returns the settings of m
func (c BotConfig) Mode(m Mode) ModeSettings {
	if m == Stationary {
		return c.Stationary
	}
	return c.Transient
}

// WithMode returns a copy of c with the settings of m replaced
func (c BotConfig) WithMode(m Mode, s ModeSettings) BotConfig {
	if m == Stationary {
		c.Stationary = s
	} else {
		c.Transient = s
	}
	return c
}

// Record is the persisted snapshot: configuration plus lifetime counters
type Record struct {
	Config             BotConfig
	TransientLifetime  uint64
	StationaryLifetime uint64
}

// Lifetime returns the persisted lifetime counter of m
func (r Record) Lifetime(m Mode) uint64 {
	if m == Stationary {
		return r.StationaryLifetime
	}
	return r.TransientLifetime
}

// DefaultModeSettings returns the defaults of m
func DefaultModeSettings(m Mode) ModeSettings {
	if m == Stationary {
		return ModeSettings{
			ToggleKey:       "f9",
			IntervalSeconds: 0,
			IntervalMillis:  0,
			Confidence:      0.80,
			Template:        "big_cookie.png",
		}
	}
	return ModeSettings{
		ToggleKey:       "f8",
		IntervalSeconds: 0,
		IntervalMillis:  500,
		Confidence:      0.80,
		Template:        "golden_cookie.png",
	}
}

// Default returns the record used when nothing has been saved yet
func Default() Record {
	return Record{
		Config: BotConfig{
			Transient:  DefaultModeSettings(Transient),
			Stationary: DefaultModeSettings(Stationary),
		},
	}
}
