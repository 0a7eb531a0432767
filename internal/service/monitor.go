package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"lifesign/internal/batcher"
	"lifesign/internal/config"
	"lifesign/internal/consumer"
	"lifesign/internal/evaluator"
	"lifesign/internal/geothrottle"
	"lifesign/internal/models"
	"lifesign/internal/mqtt"
	"lifesign/internal/notifier"
	"lifesign/internal/repository"
	"lifesign/internal/sleepwin"
	"lifesign/internal/state"
)

// Cleared-by causes recorded on alert clears.
const (
	ClearedByActivity = "activity"
	ClearedByMeal     = "meal"
	ClearedByFamily   = "family"
)

// MonitorService owns the telemetry-reduction and alerting pipeline: phone
// observations come in through the MQTT consumer, batching/throttling gate
// the writes to the status store, and the periodic sweep drives the alert
// state machines. All per-device state lives in Redis and only advances
// after the corresponding remote write succeeded.
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	stateManager  *state.Manager
	statusRepo    *repository.DeviceStatusRepository
	alertRepo     *repository.AlertEventsRepository
	notifier      notifier.Notifier
	phoneConsumer *consumer.PhoneConsumer

	kindConfigs   map[evaluator.Kind]evaluator.KindConfig
	defaultWindow sleepwin.Window
}

// NewMonitorService connects to PostgreSQL, Redis and the MQTT broker and
// wires the pipeline.
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	mqttClient, err := mqtt.NewClient(&cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mqtt: %w", err)
	}

	s := &MonitorService{
		config:      cfg,
		db:          db,
		redisClient: redisClient,
		mqttClient:  mqttClient,
		logger:      logger,

		stateManager:  state.NewManager(cfg.Monitor.StateKeyPrefix, redisClient, logger),
		statusRepo:    repository.NewDeviceStatusRepository(db, logger),
		alertRepo:     repository.NewAlertEventsRepository(db, logger),
		notifier:      notifier.NewMQTTNotifier(mqttClient, cfg.Monitor.FamilyTopic, cfg.MQTT.QoS, logger),
		phoneConsumer: consumer.NewPhoneConsumer(cfg.Monitor.PhoneTopic, cfg.MQTT.QoS, mqttClient, logger),

		kindConfigs:   kindConfigsFrom(cfg),
		defaultWindow: defaultWindowFrom(cfg, logger),
	}
	return s, nil
}

// kindConfigsFrom maps the configured thresholds onto the alert kinds.
func kindConfigsFrom(cfg *config.Config) map[evaluator.Kind]evaluator.KindConfig {
	return map[evaluator.Kind]evaluator.KindConfig{
		evaluator.KindSurvival: {Threshold: cfg.Monitor.SurvivalThreshold, SleepAware: true},
		evaluator.KindFood:     {Threshold: cfg.Monitor.FoodThreshold, SleepAware: true},
	}
}

// defaultWindowFrom parses the configured default sleep window. A
// malformed window means sleep exclusion is off, never a startup failure.
func defaultWindowFrom(cfg *config.Config, logger *zap.Logger) sleepwin.Window {
	if !cfg.Sleep.Enabled {
		return sleepwin.Window{}
	}
	w, err := sleepwin.NewWindow(cfg.Sleep.StartTime, cfg.Sleep.EndTime, sleepwin.AllWeekdays())
	if err != nil {
		logger.Warn("Invalid default sleep window, disabling sleep exclusion",
			zap.String("start", cfg.Sleep.StartTime),
			zap.String("end", cfg.Sleep.EndTime),
			zap.Error(err),
		)
		return sleepwin.Window{}
	}
	return w
}

// Start subscribes the phone consumer and runs the evaluation sweep until
// the context is canceled.
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service",
		zap.Duration("eval_interval", s.config.Monitor.EvalInterval),
	)

	if err := s.phoneConsumer.Start(ctx, s); err != nil {
		return fmt.Errorf("failed to start phone consumer: %w", err)
	}

	s.evalLoop(ctx)
	return nil
}

// Stop closes all connections.
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping monitor service")

	if err := s.phoneConsumer.Stop(); err != nil {
		s.logger.Error("Failed to stop phone consumer", zap.Error(err))
	}
	s.mqttClient.Disconnect()
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}
	return nil
}

// evalLoop sweeps all registered devices on the configured interval.
func (s *MonitorService) evalLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Monitor.EvalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, time.Now().UTC())
		}
	}
}

// sweep evaluates every registered device. Per-device errors are logged
// and absorbed; the sweep always finishes.
func (s *MonitorService) sweep(ctx context.Context, now time.Time) {
	deviceIDs, err := s.stateManager.ListDevices(ctx)
	if err != nil {
		s.logger.Error("Failed to list devices for sweep", zap.Error(err))
		return
	}
	for _, deviceID := range deviceIDs {
		if err := s.EvaluateAlerts(ctx, deviceID, now); err != nil {
			s.logger.Error("Failed to evaluate alerts",
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
		}
	}
}

// HandleActivity processes one observed phone-activity event. The batcher
// decides whether to forward; forwarded events merge into the status
// document, advance the batch state, and clear an active survival alert.
func (s *MonitorService) HandleActivity(ctx context.Context, deviceID string, observedAt time.Time, force bool) error {
	st, err := s.stateManager.GetBatchState(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("failed to load batch state: %w", err)
	}

	if s.config.Monitor.Batch.ShouldBatch(observedAt, st.LastForwardedAt, force) {
		s.logger.Debug("Activity batched",
			zap.String("device_id", deviceID),
			zap.Time("observed_at", observedAt),
		)
		return nil
	}

	if err := s.statusRepo.MergeStatus(ctx, deviceID, map[string]interface{}{
		"last_activity_at": observedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		// Batch state is not advanced: the next observation re-evaluates
		// and re-forwards.
		return fmt.Errorf("failed to forward activity: %w", err)
	}

	st.RecordForward(observedAt)
	if err := s.stateManager.SaveBatchState(ctx, deviceID, st); err != nil {
		s.logger.Error("Failed to save batch state",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
	if err := s.stateManager.RegisterDevice(ctx, deviceID); err != nil {
		s.logger.Error("Failed to register device",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	s.logger.Info("Activity forwarded",
		zap.String("device_id", deviceID),
		zap.Time("observed_at", observedAt),
	)

	return s.clearAlert(ctx, deviceID, evaluator.KindSurvival, ClearedByActivity, observedAt)
}

// HandleMeal processes one logged meal. Meals are rare explicit taps and
// always forwarded.
func (s *MonitorService) HandleMeal(ctx context.Context, deviceID string, observedAt time.Time) error {
	if err := s.statusRepo.MergeStatus(ctx, deviceID, map[string]interface{}{
		"last_meal_at": observedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("failed to forward meal: %w", err)
	}

	if err := s.stateManager.SaveLastMealAt(ctx, deviceID, observedAt); err != nil {
		s.logger.Error("Failed to save last meal time",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
	if err := s.stateManager.RegisterDevice(ctx, deviceID); err != nil {
		s.logger.Error("Failed to register device",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	s.logger.Info("Meal forwarded",
		zap.String("device_id", deviceID),
		zap.Time("observed_at", observedAt),
	)

	return s.clearAlert(ctx, deviceID, evaluator.KindFood, ClearedByMeal, observedAt)
}

// HandleLocation processes one GPS fix. Invalid geometry is rejected
// without touching throttle state; suppressed fixes are dropped silently.
func (s *MonitorService) HandleLocation(ctx context.Context, deviceID string, sample geothrottle.Sample) error {
	if err := sample.Validate(); err != nil {
		s.logger.Warn("Rejected invalid location sample",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return nil
	}

	prev, err := s.stateManager.GetThrottleState(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("failed to load throttle state: %w", err)
	}

	now := sample.ObservedAt
	if s.config.Monitor.Location.ShouldThrottle(now, sample, prev) {
		s.logger.Debug("Location throttled",
			zap.String("device_id", deviceID),
		)
		return nil
	}

	if err := s.statusRepo.MergeStatus(ctx, deviceID, map[string]interface{}{
		"latitude":    sample.Latitude,
		"longitude":   sample.Longitude,
		"location_at": sample.ObservedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("failed to forward location: %w", err)
	}

	var st geothrottle.State
	if prev != nil {
		st = *prev
	}
	st.RecordStored(sample, now)
	if err := s.stateManager.SaveThrottleState(ctx, deviceID, st); err != nil {
		s.logger.Error("Failed to save throttle state",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	s.logger.Info("Location forwarded",
		zap.String("device_id", deviceID),
		zap.Float64("latitude", sample.Latitude),
		zap.Float64("longitude", sample.Longitude),
	)
	return nil
}

// EvaluateAlerts runs one evaluation tick for both alert kinds.
func (s *MonitorService) EvaluateAlerts(ctx context.Context, deviceID string, now time.Time) error {
	window, err := s.sleepWindowFor(ctx, deviceID)
	if err != nil {
		return err
	}

	for _, kind := range []evaluator.Kind{evaluator.KindSurvival, evaluator.KindFood} {
		if err := s.evaluateKind(ctx, deviceID, kind, now, window); err != nil {
			return err
		}
	}
	return nil
}

// evaluateKind runs one kind's state machine and applies a trigger
// transition when due: alert row first, then local state, then the
// notification (a failed notification is logged, the row remains the
// source of truth).
func (s *MonitorService) evaluateKind(ctx context.Context, deviceID string, kind evaluator.Kind, now time.Time, window sleepwin.Window) error {
	st, err := s.stateManager.GetAlertState(ctx, deviceID, kind)
	if err != nil {
		return fmt.Errorf("failed to load alert state: %w", err)
	}

	last, err := s.lastQualifying(ctx, deviceID, kind)
	if err != nil {
		return err
	}

	kindCfg := s.kindConfigs[kind]
	if evaluator.Evaluate(now, last, st, kindCfg, window) != evaluator.DecisionTrigger {
		return nil
	}

	event := &models.AlertEvent{
		EventID:     uuid.NewString(),
		DeviceID:    deviceID,
		AlertKind:   string(kind),
		TriggeredAt: now,
		TriggerData: triggerDataJSON(now, last, kindCfg, window),
	}
	if err := s.alertRepo.CreateAlertEvent(ctx, event); err != nil {
		// State not advanced; the trigger is retried on the next tick.
		return fmt.Errorf("failed to create alert event: %w", err)
	}

	st.MarkTriggered(now)
	if err := s.stateManager.SaveAlertState(ctx, deviceID, kind, st); err != nil {
		return fmt.Errorf("failed to save alert state: %w", err)
	}

	s.logger.Info("Alert triggered",
		zap.String("device_id", deviceID),
		zap.String("alert_kind", string(kind)),
		zap.String("event_id", event.EventID),
	)

	if err := s.notifier.Notify(ctx, notifier.Notification{
		DeviceID:  deviceID,
		AlertKind: string(kind),
		Status:    notifier.StatusTriggered,
		EventID:   event.EventID,
		At:        now,
	}); err != nil {
		s.logger.Error("Failed to deliver alert notification",
			zap.String("device_id", deviceID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
	return nil
}

// ClearAlert applies an explicit family-initiated clear.
func (s *MonitorService) ClearAlert(ctx context.Context, deviceID string, kind evaluator.Kind, now time.Time) error {
	return s.clearAlert(ctx, deviceID, kind, ClearedByFamily, now)
}

// clearAlert applies the Active -> Inactive transition if the kind is
// active, emitting exactly one cleared signal.
func (s *MonitorService) clearAlert(ctx context.Context, deviceID string, kind evaluator.Kind, clearedBy string, now time.Time) error {
	st, err := s.stateManager.GetAlertState(ctx, deviceID, kind)
	if err != nil {
		return fmt.Errorf("failed to load alert state: %w", err)
	}
	if !st.MarkCleared(now) {
		return nil
	}

	if err := s.stateManager.SaveAlertState(ctx, deviceID, kind, st); err != nil {
		return fmt.Errorf("failed to save alert state: %w", err)
	}

	if _, err := s.alertRepo.ClearActive(ctx, deviceID, string(kind), clearedBy, now); err != nil {
		s.logger.Error("Failed to clear alert events",
			zap.String("device_id", deviceID),
			zap.String("alert_kind", string(kind)),
			zap.Error(err),
		)
	}

	s.logger.Info("Alert cleared",
		zap.String("device_id", deviceID),
		zap.String("alert_kind", string(kind)),
		zap.String("cleared_by", clearedBy),
	)

	if err := s.notifier.Notify(ctx, notifier.Notification{
		DeviceID:  deviceID,
		AlertKind: string(kind),
		Status:    notifier.StatusCleared,
		At:        now,
	}); err != nil {
		s.logger.Error("Failed to deliver clear notification",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
	return nil
}

// lastQualifying returns the kind's most recent qualifying observation.
func (s *MonitorService) lastQualifying(ctx context.Context, deviceID string, kind evaluator.Kind) (*time.Time, error) {
	switch kind {
	case evaluator.KindFood:
		last, err := s.stateManager.GetLastMealAt(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load last meal time: %w", err)
		}
		return last, nil
	default:
		st, err := s.stateManager.GetBatchState(ctx, deviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load batch state: %w", err)
		}
		return st.LastForwardedAt, nil
	}
}

// sleepWindowFor returns the device's own window, falling back to the
// configured default.
func (s *MonitorService) sleepWindowFor(ctx context.Context, deviceID string) (sleepwin.Window, error) {
	w, ok, err := s.stateManager.GetSleepWindow(ctx, deviceID)
	if err != nil {
		return sleepwin.Window{}, fmt.Errorf("failed to load sleep window: %w", err)
	}
	if ok {
		return w, nil
	}
	return s.defaultWindow, nil
}

// SetSleepWindow stores a device-specific sleep window.
func (s *MonitorService) SetSleepWindow(ctx context.Context, deviceID string, w sleepwin.Window) error {
	return s.stateManager.SaveSleepWindow(ctx, deviceID, w)
}

// BatchState exposes the device's batching state (used by status APIs).
func (s *MonitorService) BatchState(ctx context.Context, deviceID string) (batcher.State, error) {
	return s.stateManager.GetBatchState(ctx, deviceID)
}

// triggerDataJSON builds the decision snapshot stored with an alert row.
func triggerDataJSON(now time.Time, last *time.Time, kindCfg evaluator.KindConfig, window sleepwin.Window) string {
	td := models.TriggerData{
		ThresholdHours: kindCfg.Threshold.Hours(),
		SleepAware:     kindCfg.SleepAware && window.Enabled,
		LastQualifying: last,
	}
	if last != nil {
		if td.SleepAware {
			td.AwakeHours = window.AwakeDuration(*last, now).Hours()
		} else {
			td.AwakeHours = now.Sub(*last).Hours()
		}
	}
	data, err := json.Marshal(td)
	if err != nil {
		return "{}"
	}
	return string(data)
}
