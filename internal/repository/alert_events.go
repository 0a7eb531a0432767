package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lifesign/internal/models"
)

// AlertEventsRepository stores alert occurrences in PostgreSQL.
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository creates the repository.
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlertEvent inserts a new active alert row.
func (r *AlertEventsRepository) CreateAlertEvent(ctx context.Context, event *models.AlertEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}

	query := `
		INSERT INTO alert_events (
			event_id, device_id, alert_kind, alert_status,
			triggered_at, trigger_data, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, NOW(), NOW())
	`

	triggerData := event.TriggerData
	if triggerData == "" {
		triggerData = "{}"
	}

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.DeviceID,
		event.AlertKind,
		models.AlertStatusActive,
		event.TriggeredAt,
		triggerData,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert event: %w", err)
	}
	return nil
}

// ClearActive marks the device's active alerts of one kind as cleared.
// Returns how many rows were cleared; zero is not an error (the local
// state machine, not the table, decides whether a clear signal is due).
func (r *AlertEventsRepository) ClearActive(ctx context.Context, deviceID, alertKind, clearedBy string, clearedAt time.Time) (int64, error) {
	query := `
		UPDATE alert_events
		SET alert_status = $1,
			cleared_at = $2,
			cleared_by = $3,
			updated_at = NOW()
		WHERE device_id = $4
		  AND alert_kind = $5
		  AND alert_status = $6
	`

	res, err := r.db.ExecContext(ctx, query,
		models.AlertStatusCleared,
		clearedAt,
		clearedBy,
		deviceID,
		alertKind,
		models.AlertStatusActive,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to clear alert events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared alert events: %w", err)
	}
	return n, nil
}

// GetActiveEvent returns the device's active alert of one kind, nil when
// there is none.
func (r *AlertEventsRepository) GetActiveEvent(ctx context.Context, deviceID, alertKind string) (*models.AlertEvent, error) {
	query := `
		SELECT
			event_id, device_id, alert_kind, alert_status,
			triggered_at, cleared_at, cleared_by, trigger_data,
			created_at, updated_at
		FROM alert_events
		WHERE device_id = $1
		  AND alert_kind = $2
		  AND alert_status = $3
		ORDER BY triggered_at DESC
		LIMIT 1
	`

	var event models.AlertEvent
	var clearedAt sql.NullTime
	var clearedBy sql.NullString
	var triggerData []byte

	err := r.db.QueryRowContext(ctx, query, deviceID, alertKind, models.AlertStatusActive).Scan(
		&event.EventID,
		&event.DeviceID,
		&event.AlertKind,
		&event.AlertStatus,
		&event.TriggeredAt,
		&clearedAt,
		&clearedBy,
		&triggerData,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active alert event: %w", err)
	}

	if clearedAt.Valid {
		event.ClearedAt = &clearedAt.Time
	}
	if clearedBy.Valid {
		event.ClearedBy = &clearedBy.String
	}
	event.TriggerData = string(triggerData)

	return &event, nil
}

// ListEvents returns the device's alert history, newest first.
func (r *AlertEventsRepository) ListEvents(ctx context.Context, deviceID string, limit int) ([]models.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			event_id, device_id, alert_kind, alert_status,
			triggered_at, cleared_at, cleared_by, trigger_data,
			created_at, updated_at
		FROM alert_events
		WHERE device_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert events: %w", err)
	}
	defer rows.Close()

	var events []models.AlertEvent
	for rows.Next() {
		var event models.AlertEvent
		var clearedAt sql.NullTime
		var clearedBy sql.NullString
		var triggerData []byte

		if err := rows.Scan(
			&event.EventID,
			&event.DeviceID,
			&event.AlertKind,
			&event.AlertStatus,
			&event.TriggeredAt,
			&clearedAt,
			&clearedBy,
			&triggerData,
			&event.CreatedAt,
			&event.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}

		if clearedAt.Valid {
			event.ClearedAt = &clearedAt.Time
		}
		if clearedBy.Valid {
			event.ClearedBy = &clearedBy.String
		}
		event.TriggerData = string(triggerData)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert events: %w", err)
	}

	return events, nil
}
