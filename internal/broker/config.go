package broker

import "time"

// Config tunes the Exit Coordinator's timers and the broker's default
// client-facing timeouts.
type Config struct {
	// StartOnOutput controls the Starting -> Running transition: true waits
	// for the first PTY read, false transitions immediately after spawn.
	StartOnOutput bool

	FifoPollInterval        time.Duration
	QuiescenceCheckInterval time.Duration
	QuiescenceWindow        time.Duration
	Heartbeat               time.Duration

	ForcedExitInitialWait time.Duration
	GracefulTimeout       time.Duration

	SnapshotTimeout time.Duration
	ExitTimeout     time.Duration
	ExpectTimeout   time.Duration
	SubprocessWait  time.Duration
}

// DefaultConfig returns the engine's tuned defaults.
func DefaultConfig() Config {
	return Config{
		StartOnOutput:           true,
		FifoPollInterval:        50 * time.Millisecond,
		QuiescenceCheckInterval: 10 * time.Millisecond,
		QuiescenceWindow:        200 * time.Millisecond,
		Heartbeat:               60 * time.Second,
		ForcedExitInitialWait:   500 * time.Millisecond,
		GracefulTimeout:         2 * time.Second,
		SnapshotTimeout:         5 * time.Second,
		ExitTimeout:             5 * time.Second,
		ExpectTimeout:           5 * time.Second,
		SubprocessWait:          2 * time.Second,
	}
}
