// Package state persists per-device decision state in Redis so that batch,
// throttle and alert decisions survive a process restart. Each state object
// has a single logical owner on the event-processing path; Redis is the
// durable mirror, not a coordination mechanism.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"lifesign/internal/batcher"
	"lifesign/internal/evaluator"
	"lifesign/internal/geothrottle"
	"lifesign/internal/sleepwin"
)

// Manager reads and writes per-device state keys.
type Manager struct {
	prefix      string
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewManager creates a state manager. prefix is prepended to every key,
// e.g. "lifesign:device:".
func NewManager(prefix string, redisClient *redis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		prefix:      prefix,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (m *Manager) key(deviceID, suffix string) string {
	return fmt.Sprintf("%s%s:%s", m.prefix, deviceID, suffix)
}

func (m *Manager) devicesKey() string {
	return m.prefix + "ids"
}

// set marshals a value into a state key. State keys have no TTL; they are
// overwritten, never expired.
func (m *Manager) set(ctx context.Context, key string, value interface{}) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := m.redisClient.Set(ctx, key, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}
	return nil
}

// get unmarshals a state key into dest. Returns false when the key does
// not exist.
func (m *Manager) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := m.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get state: %w", err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return true, nil
}

// GetBatchState returns the activity batching state, zero-valued when the
// device has never forwarded.
func (m *Manager) GetBatchState(ctx context.Context, deviceID string) (batcher.State, error) {
	var st batcher.State
	_, err := m.get(ctx, m.key(deviceID, "batch"), &st)
	return st, err
}

// SaveBatchState persists the batching state.
func (m *Manager) SaveBatchState(ctx context.Context, deviceID string, st batcher.State) error {
	return m.set(ctx, m.key(deviceID, "batch"), st)
}

// GetThrottleState returns the location throttle state, nil when no fix
// was ever stored.
func (m *Manager) GetThrottleState(ctx context.Context, deviceID string) (*geothrottle.State, error) {
	var st geothrottle.State
	ok, err := m.get(ctx, m.key(deviceID, "location"), &st)
	if err != nil || !ok {
		return nil, err
	}
	return &st, nil
}

// SaveThrottleState persists the throttle state.
func (m *Manager) SaveThrottleState(ctx context.Context, deviceID string, st geothrottle.State) error {
	return m.set(ctx, m.key(deviceID, "location"), st)
}

// GetAlertState returns the alert state for one kind, zero-valued
// (inactive) when never set.
func (m *Manager) GetAlertState(ctx context.Context, deviceID string, kind evaluator.Kind) (evaluator.State, error) {
	var st evaluator.State
	_, err := m.get(ctx, m.key(deviceID, "alert:"+string(kind)), &st)
	return st, err
}

// SaveAlertState persists the alert state for one kind.
func (m *Manager) SaveAlertState(ctx context.Context, deviceID string, kind evaluator.Kind, st evaluator.State) error {
	return m.set(ctx, m.key(deviceID, "alert:"+string(kind)), st)
}

// GetLastMealAt returns the last recorded meal time, nil when none.
func (m *Manager) GetLastMealAt(ctx context.Context, deviceID string) (*time.Time, error) {
	var t time.Time
	ok, err := m.get(ctx, m.key(deviceID, "last_meal"), &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// SaveLastMealAt persists the last recorded meal time.
func (m *Manager) SaveLastMealAt(ctx context.Context, deviceID string, t time.Time) error {
	return m.set(ctx, m.key(deviceID, "last_meal"), t)
}

// GetSleepWindow returns the device's sleep window configuration. ok is
// false when the device has no window of its own.
func (m *Manager) GetSleepWindow(ctx context.Context, deviceID string) (sleepwin.Window, bool, error) {
	var w sleepwin.Window
	ok, err := m.get(ctx, m.key(deviceID, "sleep_window"), &w)
	return w, ok, err
}

// SaveSleepWindow persists the device's sleep window configuration.
func (m *Manager) SaveSleepWindow(ctx context.Context, deviceID string, w sleepwin.Window) error {
	return m.set(ctx, m.key(deviceID, "sleep_window"), w)
}

// RegisterDevice adds the device to the set swept by the periodic alert
// evaluation.
func (m *Manager) RegisterDevice(ctx context.Context, deviceID string) error {
	if err := m.redisClient.SAdd(ctx, m.devicesKey(), deviceID).Err(); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// ListDevices returns all registered device IDs.
func (m *Manager) ListDevices(ctx context.Context) ([]string, error) {
	ids, err := m.redisClient.SMembers(ctx, m.devicesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return ids, nil
}
