package publish

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/psantana5/vitals-engine/pkg/config"
	"github.com/psantana5/vitals-engine/pkg/models"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 5 * time.Second
	mqttPublishTimeout = 2 * time.Second
)

// MQTTSink publishes each reading to <topic>/<job id>
type MQTTSink struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// NewMQTTSink connects to the broker
func NewMQTTSink(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTSink, error) {
	logger = logger.Named("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return &MQTTSink{client: client, topic: cfg.Topic, logger: logger}, nil
}

// Name returns the sink name
func (s *MQTTSink) Name() string {
	return "mqtt"
}

// Publish sends one reading
func (s *MQTTSink) Publish(ctx context.Context, jobID string, r models.Reading) error {
	payload, err := encode(jobID, r, time.Now())
	if err != nil {
		return err
	}

	topic := s.topic + "/" + jobID
	token := s.client.Publish(topic, mqttQoS, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
