// Package notifier delivers alert trigger/clear signals to family members.
// Delivery runs over MQTT; the payload is the contract, the transport is
// swappable behind the Notifier interface.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lifesign/internal/mqtt"
)

// Notification statuses.
const (
	StatusTriggered = "triggered"
	StatusCleared   = "cleared"
)

// Notification is one alert signal.
type Notification struct {
	DeviceID  string    `json:"device_id"`
	AlertKind string    `json:"alert_kind"` // survival, food
	Status    string    `json:"status"`     // triggered, cleared
	EventID   string    `json:"event_id,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier is implemented by alert delivery sinks.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// MQTTNotifier publishes notifications to per-device family topics.
type MQTTNotifier struct {
	client      *mqtt.Client
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTNotifier creates the notifier. topicPrefix is e.g.
// "lifesign/family"; notifications go to {prefix}/{device_id}/alerts.
func NewMQTTNotifier(client *mqtt.Client, topicPrefix string, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		client:      client,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// Notify publishes one notification.
func (n *MQTTNotifier) Notify(ctx context.Context, note Notification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	topic := fmt.Sprintf("%s/%s/alerts", n.topicPrefix, note.DeviceID)
	if err := n.client.Publish(topic, n.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.logger.Info("Published alert notification",
		zap.String("device_id", note.DeviceID),
		zap.String("alert_kind", note.AlertKind),
		zap.String("status", note.Status),
		zap.String("topic", topic),
	)
	return nil
}
