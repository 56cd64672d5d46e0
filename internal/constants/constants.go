package constants

import "time"

// Scheduler timing
const (
	MinimumTick     = 100 * time.Millisecond // Floor for the transient poll interval (bounds CPU at interval 0)
	SupervisionTick = 50 * time.Millisecond  // Stationary control-loop tick
	JoinTimeout     = 1 * time.Second        // Bounded wait when joining loops and worker pools
	SaveTimeout     = 2 * time.Second        // Deadline for a single persistence write

	// UI publishing
	PublishInterval = 100 * time.Millisecond // Minimum spacing between counter redraws
)

// Stationary clicking
const (
	GracePeriod           = 500 * time.Millisecond // Displacement checks are suppressed this long after acquisition
	DisplacementTolerance = 10                     // Pixels in either axis before the user is considered to have moved the pointer
	MoveSkipRadius        = 10.0                   // Skip the initial move when already this close to the target

	FastWorkerCount  = 100 // Workers started when the click interval is zero
	FlushEvery       = 10  // Local clicks buffered by a worker before updating the shared counters
	CheckpointEvery  = 500 // Session clicks between periodic persistence checkpoints
	WorkerErrorPause = 100 * time.Millisecond
	ErrorLogInterval = 1 * time.Second // Repeated primitive errors are logged at most this often
)

// Settings bounds
const (
	MaxIntervalSeconds = 1800
	MaxIntervalMillis  = 999
	MinFunctionKey     = 1
	MaxFunctionKey     = 24
)

// Image Matching
const (
	DefaultTolerance = 60 // Color tolerance for pixel comparison
	TemplateCacheTTL = 5 * time.Minute
)

// Logging
const (
	MaxLogLines = 100 // Lines kept in the UI log list
)
