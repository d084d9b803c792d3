// Package kafka adapts Kafka topics to sluice sources and sinks. The
// source consumes through a consumer group with manual offset commits
// so acked records are never redelivered and nacked ones are.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/sluicekit/sluice"
	"github.com/sluicekit/sluice/config"
)

// Message is a consumed Kafka record. Topic, Partition, and Offset
// identify the record for offset commits.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Headers   map[string]string
	Time      time.Time
}

// messageReader is the part of kafkago.Reader the source uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Source consumes a topic through a consumer group. Ack commits the
// record's offset; Nack leaves it uncommitted so the group redelivers
// after a restart.
type Source struct {
	reader messageReader
	logger *slog.Logger

	mu       sync.Mutex
	records  chan Message
	closed   bool
	stopOnce sync.Once
}

var _ sluice.StreamSource[Message] = (*Source)(nil)

// NewSource connects a consumer-group reader per cfg. Auto-commit is
// disabled; offsets move only when records are acked. Panics when
// brokers, topic, or group id is missing.
func NewSource(cfg config.KafkaConfig, logger *slog.Logger) *Source {
	if len(cfg.Brokers) == 0 {
		panic("kafka: brokers cannot be empty")
	}
	if cfg.Topic == "" {
		panic("kafka: topic cannot be empty")
	}
	if cfg.GroupID == "" {
		panic("kafka: group id cannot be empty")
	}
	minBytes := cfg.MinBytes
	if minBytes == 0 {
		minBytes = 10e3 // 10KB
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = 10e6 // 10MB
	}
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		MaxWait:        time.Second,
		StartOffset:    kafkago.FirstOffset,
		CommitInterval: 0, // commit manually on Ack
	})
	return newSource(reader, logger)
}

func newSource(reader messageReader, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		reader:  reader,
		logger:  logger,
		records: make(chan Message, 100),
	}
}

// Start begins consuming. Call it before reading Records.
func (s *Source) Start(ctx context.Context) {
	go s.readLoop(ctx)
}

func (s *Source) readLoop(ctx context.Context) {
	defer close(s.records)

	for {
		if s.isClosed() {
			return
		}

		// FetchMessage rather than ReadMessage keeps commits manual.
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return
			}
			s.logger.Error("kafka fetch failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		record := Message{
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Key:       string(msg.Key),
			Value:     msg.Value,
			Time:      msg.Time,
		}
		if len(msg.Headers) > 0 {
			record.Headers = make(map[string]string, len(msg.Headers))
			for _, h := range msg.Headers {
				record.Headers[h.Key] = string(h.Value)
			}
		}

		select {
		case s.records <- record:
			s.logger.Debug("received message",
				"topic", record.Topic,
				"partition", record.Partition,
				"offset", record.Offset,
			)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Source) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Records implements sluice.StreamSource.
func (s *Source) Records() <-chan Message {
	return s.records
}

// Ack commits the record's offset.
func (s *Source) Ack(ctx context.Context, record Message) error {
	return s.reader.CommitMessages(ctx, kafkago.Message{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
	})
}

// Nack leaves the offset uncommitted so the consumer group redelivers
// the record on restart.
func (s *Source) Nack(ctx context.Context, record Message, err error) error {
	s.logger.Warn("kafka record not accepted",
		"topic", record.Topic,
		"partition", record.Partition,
		"offset", record.Offset,
		"error", err,
	)
	return nil
}

// Close stops the source. The reader close unblocks any in-flight
// fetch, which ends the read loop and closes the Records channel.
func (s *Source) Close() error {
	var closeErr error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		closeErr = s.reader.Close()
	})
	return closeErr
}

// messageWriter is the part of kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink produces each batch to a topic in a single write call.
type Sink struct {
	writer messageWriter
	logger *slog.Logger
}

var _ sluice.Sink[Message] = (*Sink)(nil)

// NewSink builds a producer sink for cfg.Topic. Panics when brokers or
// topic is missing.
func NewSink(cfg config.KafkaConfig, logger *slog.Logger) *Sink {
	if len(cfg.Brokers) == 0 {
		panic("kafka: brokers cannot be empty")
	}
	if cfg.Topic == "" {
		panic("kafka: topic cannot be empty")
	}
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return newSink(writer, logger)
}

func newSink(writer messageWriter, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: writer, logger: logger}
}

// Write implements sluice.Sink.
func (s *Sink) Write(ctx context.Context, records []Message) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(records))
	for _, r := range records {
		msg := kafkago.Message{Key: []byte(r.Key), Value: r.Value}
		for k, v := range r.Headers {
			msg.Headers = append(msg.Headers, kafkago.Header{Key: k, Value: []byte(v)})
		}
		msgs = append(msgs, msg)
	}
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	s.logger.Debug("produced batch", "count", len(msgs))
	return nil
}

// Close flushes and closes the underlying writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}
