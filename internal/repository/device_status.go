package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DeviceStatusRepository is the remote status store adapter: one JSONB
// document per device, updated with partial-field merges and a
// server-assigned timestamp. Callers never read back their own write to
// confirm; they trust the local state they advance on success.
type DeviceStatusRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceStatusRepository creates the repository.
func NewDeviceStatusRepository(db *sql.DB, logger *zap.Logger) *DeviceStatusRepository {
	return &DeviceStatusRepository{
		db:     db,
		logger: logger,
	}
}

// MergeStatus merges the given fields into the device's status document.
// Existing fields not named are preserved; updated_at is assigned by the
// database.
func (r *DeviceStatusRepository) MergeStatus(ctx context.Context, deviceID string, fields map[string]interface{}) error {
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if len(fields) == 0 {
		return fmt.Errorf("no fields to merge")
	}

	doc, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal status fields: %w", err)
	}

	query := `
		INSERT INTO device_status (device_id, status, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (device_id)
		DO UPDATE SET
			status = device_status.status || EXCLUDED.status,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, deviceID, doc); err != nil {
		return fmt.Errorf("failed to merge device status: %w", err)
	}
	return nil
}

// GetStatus returns the device's status document and its server-assigned
// update time.
func (r *DeviceStatusRepository) GetStatus(ctx context.Context, deviceID string) (map[string]interface{}, time.Time, error) {
	query := `
		SELECT status, updated_at
		FROM device_status
		WHERE device_id = $1
	`

	var doc []byte
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&doc, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, fmt.Errorf("device status not found: %s", deviceID)
		}
		return nil, time.Time{}, fmt.Errorf("failed to get device status: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to unmarshal device status: %w", err)
	}
	return fields, updatedAt, nil
}
