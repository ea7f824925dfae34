// Package mqttsink publishes decoded TDM words to an MQTT broker.
//
// Each word is published as a JSON [output.Record] to
// "<topic_prefix>/<channel>".
package mqttsink

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/MrWong99/tdmdecode/internal/config"
	"github.com/MrWong99/tdmdecode/internal/output"
	"github.com/MrWong99/tdmdecode/pkg/tdm"
)

// ErrNotConnected is returned by [Sink.Emit] while the broker is unreachable.
var ErrNotConnected = errors.New("mqttsink: not connected")

// publishTimeout bounds how long Emit waits for the broker to acknowledge.
const publishTimeout = 5 * time.Second

// Client is the subset of [mqtt.Client] used by [Sink].
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// Sink is a [tdm.Sink] that publishes every word.
type Sink struct {
	client Client
	prefix string
	qos    byte
}

// New connects to cfg.Broker and returns a ready sink.
func New(cfg config.MQTTConfig) (*Sink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "tdmdecode-" + uuid.NewString()
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		slog.Info("mqtt: connected to broker", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("mqtt: connection lost", "broker", cfg.Broker, "err", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqttsink: connect to %s: %w", cfg.Broker, token.Error())
	}
	return NewWithClient(client, cfg.TopicPrefix, cfg.QoS), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client Client, topicPrefix string, qos byte) *Sink {
	return &Sink{client: client, prefix: topicPrefix, qos: qos}
}

// Topic returns the topic a word on channel is published to.
func (s *Sink) Topic(channel int) string {
	return fmt.Sprintf("%s/%d", s.prefix, channel)
}

// Connected reports whether the underlying client is connected.
func (s *Sink) Connected() bool {
	return s.client.IsConnected()
}

// Emit implements [tdm.Sink].
func (s *Sink) Emit(w tdm.Word) error {
	if !s.client.IsConnected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(output.NewRecord(w))
	if err != nil {
		return fmt.Errorf("mqttsink: marshal word: %w", err)
	}
	token := s.client.Publish(s.Topic(w.Channel), s.qos, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqttsink: publish to %s timed out", s.Topic(w.Channel))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttsink: publish to %s: %w", s.Topic(w.Channel), err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight messages 250ms.
func (s *Sink) Close() error {
	s.client.Disconnect(250)
	return nil
}
