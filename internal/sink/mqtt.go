package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/i474232898/weather-poller/internal/weather"
)

// MQTTConfig holds broker settings.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Topic     string
	QoS       byte
	Timeout   time.Duration
}

// MQTT publishes each record as a JSON message under Topic/<sourceId>.
type MQTT struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// NewMQTT connects to the broker. The client reconnects on its own after the
// first successful connection.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "weather-poller-" + uuid.New().String()[:8]
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt: connect to %s timed out", cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect to %s: %w", cfg.BrokerURL, err)
	}

	return newMQTT(client, cfg.Topic, cfg.QoS, timeout), nil
}

func newMQTT(client mqtt.Client, topic string, qos byte, timeout time.Duration) *MQTT {
	if topic == "" {
		topic = DefaultTopic
	}
	return &MQTT{client: client, topic: topic, qos: qos, timeout: timeout}
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) Emit(ctx context.Context, rec weather.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return &EmitError{Sink: m.Name(), Err: fmt.Errorf("encode record: %w", err)}
	}

	token := m.client.Publish(m.topic+"/"+rec.Key.SourceID, m.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return &EmitError{Sink: m.Name(), Err: ctx.Err()}
	case <-time.After(m.timeout):
		return &EmitError{Sink: m.Name(), Err: fmt.Errorf("publish timed out after %s", m.timeout)}
	}
	if err := token.Error(); err != nil {
		return &EmitError{Sink: m.Name(), Err: err}
	}
	return nil
}

func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}
