// Package mqtt adapts an MQTT topic subscription to a sluice stream
// source. Protocol-level acknowledgement stays with the client, so Ack
// and Nack only record the outcome; QoS 1+ subscriptions redeliver
// unacknowledged publishes on reconnect.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sluicekit/sluice"
	"github.com/sluicekit/sluice/config"
)

// Message is a received MQTT publish.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// pahoClient is the part of paho.Client the source uses.
type pahoClient interface {
	Connect() paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Disconnect(quiesce uint)
}

// Source subscribes to a topic filter and delivers publishes as
// records.
type Source struct {
	client pahoClient
	cfg    config.MQTTConfig
	logger *slog.Logger

	mu       sync.Mutex
	records  chan Message
	closed   bool
	stopOnce sync.Once
}

var _ sluice.StreamSource[Message] = (*Source)(nil)

// NewSource builds a source for cfg. Panics when the broker URL or
// topic is missing. Call Start to connect and subscribe.
func NewSource(cfg config.MQTTConfig, logger *slog.Logger) *Source {
	if cfg.BrokerURL == "" {
		panic("mqtt: broker url cannot be empty")
	}
	if cfg.Topic == "" {
		panic("mqtt: topic cannot be empty")
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	return newSourceWithClient(paho.NewClient(opts), cfg, logger)
}

func newSourceWithClient(client pahoClient, cfg config.MQTTConfig, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.Buffer
	if buffer == 0 {
		buffer = 100
	}
	return &Source{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		records: make(chan Message, buffer),
	}
}

// Start connects to the broker and subscribes to the configured topic.
func (s *Source) Start(ctx context.Context) error {
	if err := waitToken(ctx, s.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	if err := waitToken(ctx, s.client.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handle)); err != nil {
		return fmt.Errorf("mqtt subscribe %q: %w", s.cfg.Topic, err)
	}
	s.logger.Info("mqtt subscribed", "topic", s.cfg.Topic, "qos", s.cfg.QoS)
	return nil
}

func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handle runs on the client's delivery goroutine, so it must not
// block: when the buffer is full the publish is dropped and QoS
// redelivery is left to pick it up.
func (s *Source) handle(_ paho.Client, msg paho.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	record := Message{
		Topic:    msg.Topic(),
		Payload:  msg.Payload(),
		Retained: msg.Retained(),
	}
	select {
	case s.records <- record:
	default:
		s.logger.Warn("mqtt buffer full, dropping message", "topic", record.Topic)
	}
}

// Records implements sluice.StreamSource.
func (s *Source) Records() <-chan Message {
	return s.records
}

// Ack is a no-op; the client acknowledged the publish at the protocol
// level when the delivery handler returned.
func (s *Source) Ack(ctx context.Context, record Message) error {
	return nil
}

// Nack logs the drop. Redelivery is up to the broker's QoS handling.
func (s *Source) Nack(ctx context.Context, record Message, err error) error {
	s.logger.Warn("mqtt record not accepted", "topic", record.Topic, "error", err)
	return nil
}

// Close unsubscribes, disconnects, and closes the Records channel.
func (s *Source) Close() error {
	var err error
	s.stopOnce.Do(func() {
		token := s.client.Unsubscribe(s.cfg.Topic)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			err = token.Error()
		}
		s.client.Disconnect(250) // quiesce ms
		s.mu.Lock()
		s.closed = true
		close(s.records)
		s.mu.Unlock()
	})
	return err
}
