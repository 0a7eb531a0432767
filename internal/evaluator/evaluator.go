// Package evaluator holds the wellness alert state machines. Two
// independent instances run per device: one keyed on phone activity
// (survival) and one keyed on the last recorded meal (food). A kind goes
// Active when the awake time since its last qualifying observation crosses
// the configured threshold, and leaves Active only on a new qualifying
// observation or an explicit clear, never by the threshold de-crossing.
package evaluator

import (
	"time"

	"lifesign/internal/sleepwin"
)

// Kind identifies an alert state machine.
type Kind string

const (
	KindSurvival Kind = "survival"
	KindFood     Kind = "food"
)

// Default thresholds.
const (
	DefaultSurvivalThreshold = 12 * time.Hour
	DefaultFoodThreshold     = 8 * time.Hour
)

// KindConfig configures one alert kind.
type KindConfig struct {
	Threshold time.Duration
	// SleepAware subtracts the sleep window from elapsed time before
	// comparing against Threshold.
	SleepAware bool
}

// DefaultConfigs returns the standard per-kind configuration.
func DefaultConfigs() map[Kind]KindConfig {
	return map[Kind]KindConfig{
		KindSurvival: {Threshold: DefaultSurvivalThreshold, SleepAware: true},
		KindFood:     {Threshold: DefaultFoodThreshold, SleepAware: true},
	}
}

// State is the persisted alert state for one kind.
type State struct {
	Active          bool       `json:"active"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	LastClearedAt   *time.Time `json:"last_cleared_at,omitempty"`
}

// Decision is the outcome of an evaluation tick.
type Decision int

const (
	// DecisionNone leaves the state unchanged.
	DecisionNone Decision = iota
	// DecisionTrigger transitions Inactive -> Active and emits one alert.
	DecisionTrigger
)

// Evaluate runs one tick of the state machine. A nil lastActivity means no
// qualifying observation was ever recorded, which is itself a signal: the
// kind is immediately eligible to trigger. The trigger is guarded on the
// current state, so an Active kind never re-triggers.
func Evaluate(now time.Time, lastActivity *time.Time, st State, cfg KindConfig, win sleepwin.Window) Decision {
	if st.Active {
		return DecisionNone
	}
	if lastActivity == nil {
		return DecisionTrigger
	}

	var elapsed time.Duration
	if cfg.SleepAware {
		elapsed = win.AwakeDuration(*lastActivity, now)
	} else {
		elapsed = now.Sub(*lastActivity)
	}
	if elapsed >= cfg.Threshold {
		return DecisionTrigger
	}
	return DecisionNone
}

// MarkTriggered applies the Inactive -> Active transition.
func (s *State) MarkTriggered(now time.Time) {
	t := now
	s.Active = true
	s.LastTriggeredAt = &t
}

// MarkCleared applies the Active -> Inactive transition. Returns false when
// the state was not Active, in which case nothing changed and no clear
// signal should be emitted.
func (s *State) MarkCleared(now time.Time) bool {
	if !s.Active {
		return false
	}
	t := now
	s.Active = false
	s.LastClearedAt = &t
	return true
}
