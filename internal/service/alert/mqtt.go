package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"analytics/internal/dto"
	"analytics/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSink mirrors alerts to an MQTT topic with QoS 0.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	logger *logger.Logger
}

// NewMQTTSink connects to broker (host:port or a full URL). The client
// reconnects on its own after a lost connection.
func NewMQTTSink(broker, topic, clientID string, logger *logger.Logger) (*MQTTSink, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info("MQTT connection established (%s)", broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warning("MQTT connection lost, will auto-reconnect: %v", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}

	return &MQTTSink{client: client, topic: topic, logger: logger}, nil
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Send(ctx context.Context, alert dto.Alert) error {
	if !s.client.IsConnectionOpen() {
		return fmt.Errorf("mqtt not connected")
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	token := s.client.Publish(s.topic, 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("publish timeout: %w", ctx.Err())
	}
}

// Close disconnects with a 250ms grace period.
func (s *MQTTSink) Close() {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}
