// Package consumer ingests observations published by the monitored phone.
// Topic layout: lifesign/phone/{device_id}/{event}, where event is one of
// activity, meal, location. Payloads are opaque timestamped inputs; all
// decisions live in the service layer.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"lifesign/internal/geothrottle"
	"lifesign/internal/mqtt"
)

// Event names carried in the topic.
const (
	EventActivity = "activity"
	EventMeal     = "meal"
	EventLocation = "location"
)

// EventHandler receives parsed phone observations. Handlers run
// synchronously within the message callback: everything that matters must
// happen before they return.
type EventHandler interface {
	HandleActivity(ctx context.Context, deviceID string, observedAt time.Time, force bool) error
	HandleMeal(ctx context.Context, deviceID string, observedAt time.Time) error
	HandleLocation(ctx context.Context, deviceID string, sample geothrottle.Sample) error
}

// activityPayload is the wire shape for activity and meal events.
type activityPayload struct {
	ObservedAt int64 `json:"observed_at"` // unix seconds
	Force      bool  `json:"force,omitempty"`
}

// locationPayload is the wire shape for GPS fixes.
type locationPayload struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ObservedAt int64   `json:"observed_at"`
}

// PhoneConsumer subscribes to the phone topics and dispatches to a handler.
type PhoneConsumer struct {
	topic      string
	qos        byte
	mqttClient *mqtt.Client
	logger     *zap.Logger
}

// NewPhoneConsumer creates the consumer. topic is the wildcard
// subscription, e.g. "lifesign/phone/+/+".
func NewPhoneConsumer(topic string, qos byte, mqttClient *mqtt.Client, logger *zap.Logger) *PhoneConsumer {
	return &PhoneConsumer{
		topic:      topic,
		qos:        qos,
		mqttClient: mqttClient,
		logger:     logger,
	}
}

// Start subscribes and dispatches until the context is canceled.
func (c *PhoneConsumer) Start(ctx context.Context, handler EventHandler) error {
	if c.topic == "" {
		return fmt.Errorf("phone topic not configured")
	}

	if err := c.mqttClient.Subscribe(c.topic, c.qos, func(topic string, payload []byte) error {
		if err := c.handleMessage(ctx, handler, topic, payload); err != nil {
			c.logger.Error("Failed to handle phone message",
				zap.String("topic", topic),
				zap.Error(err),
			)
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to subscribe to phone topic: %w", err)
	}

	c.logger.Info("Phone consumer started",
		zap.String("topic", c.topic),
	)
	return nil
}

// Stop drops the subscription.
func (c *PhoneConsumer) Stop() error {
	if err := c.mqttClient.Unsubscribe(c.topic); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	c.logger.Info("Phone consumer stopped")
	return nil
}

// handleMessage parses one inbound message and dispatches it.
func (c *PhoneConsumer) handleMessage(ctx context.Context, handler EventHandler, topic string, payload []byte) error {
	deviceID, event, err := parseTopic(topic)
	if err != nil {
		return err
	}

	switch event {
	case EventActivity:
		var p activityPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal activity payload: %w", err)
		}
		return handler.HandleActivity(ctx, deviceID, time.Unix(p.ObservedAt, 0).UTC(), p.Force)

	case EventMeal:
		var p activityPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal meal payload: %w", err)
		}
		return handler.HandleMeal(ctx, deviceID, time.Unix(p.ObservedAt, 0).UTC())

	case EventLocation:
		var p locationPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("failed to unmarshal location payload: %w", err)
		}
		return handler.HandleLocation(ctx, deviceID, geothrottle.Sample{
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			ObservedAt: time.Unix(p.ObservedAt, 0).UTC(),
		})

	default:
		c.logger.Debug("Unhandled phone event",
			zap.String("event", event),
			zap.String("device_id", deviceID),
		)
		return nil
	}
}

// parseTopic extracts {device_id, event} from lifesign/phone/{id}/{event}.
func parseTopic(topic string) (string, string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 || parts[len(parts)-2] == "" {
		return "", "", fmt.Errorf("malformed phone topic: %s", topic)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
