// Package batcher decides whether a locally observed activity event must be
// forwarded to the status store now or may be suppressed until a later
// window. Forwarding every screen-on would hammer the store; batching keeps
// family views at most one batch interval behind during normal use while
// still forwarding immediately after a long silence.
package batcher

import "time"

// Default intervals.
const (
	DefaultBatchInterval  = 2 * time.Hour
	DefaultLongInactivity = 8 * time.Hour
)

// Config holds the batching thresholds.
type Config struct {
	// BatchInterval is the normal minimum gap between forwards.
	BatchInterval time.Duration
	// LongInactivity marks a forward as breaking a long silence; such
	// events are always forwarded immediately.
	LongInactivity time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		BatchInterval:  DefaultBatchInterval,
		LongInactivity: DefaultLongInactivity,
	}
}

// State is the persisted per-device batching state.
type State struct {
	LastForwardedAt *time.Time `json:"last_forwarded_at,omitempty"`
}

// ShouldBatch reports whether the observation at now may be suppressed
// (true) or must be forwarded (false). The first-ever observation and
// forced observations are never batched.
func (c Config) ShouldBatch(now time.Time, lastForwardedAt *time.Time, forceImmediate bool) bool {
	if forceImmediate || lastForwardedAt == nil {
		return false
	}
	elapsed := now.Sub(*lastForwardedAt)
	if elapsed >= c.LongInactivity {
		// Breaking a long silence is the highest-value signal.
		return false
	}
	if elapsed >= c.BatchInterval {
		return false
	}
	return true
}

// RecordForward advances the state after a successful forward. Subsequent
// decisions measure from the latest forward, not the latest observation.
func (s *State) RecordForward(now time.Time) {
	t := now
	s.LastForwardedAt = &t
}
