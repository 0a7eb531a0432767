package models

import "time"

// Alert statuses.
const (
	AlertStatusActive  = "active"
	AlertStatusCleared = "cleared"
)

// AlertEvent is one alert occurrence (alert_events table). Alerts use a
// single flat representation: one row per trigger, updated in place when
// cleared.
type AlertEvent struct {
	EventID     string     `json:"event_id" db:"event_id"`
	DeviceID    string     `json:"device_id" db:"device_id"`
	AlertKind   string     `json:"alert_kind" db:"alert_kind"` // survival, food
	AlertStatus string     `json:"alert_status" db:"alert_status"`
	TriggeredAt time.Time  `json:"triggered_at" db:"triggered_at"`
	ClearedAt   *time.Time `json:"cleared_at,omitempty" db:"cleared_at"`
	ClearedBy   *string    `json:"cleared_by,omitempty" db:"cleared_by"`
	TriggerData string     `json:"trigger_data" db:"trigger_data"` // JSONB
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TriggerData is the decision snapshot stored with an alert (JSONB).
type TriggerData struct {
	ThresholdHours  float64    `json:"threshold_hours"`
	AwakeHours      float64    `json:"awake_hours"`
	LastQualifying  *time.Time `json:"last_qualifying,omitempty"`
	SleepAware      bool       `json:"sleep_aware"`
}
