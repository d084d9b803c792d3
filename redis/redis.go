// Package redis adapts Redis Streams to sluice sources and sinks. The
// source consumes through a consumer group, so acked entries leave the
// pending list and nacked ones are redelivered; the sink appends each
// record with XADD.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sluicekit/sluice"
	"github.com/sluicekit/sluice/config"
)

// Entry is one stream message. Values holds the raw field-value pairs
// of the XADD that produced it.
type Entry struct {
	ID     string
	Values map[string]any
}

// streamClient is the part of goredis.Client the adapters use.
type streamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *goredis.StatusCmd
	XReadGroup(ctx context.Context, a *goredis.XReadGroupArgs) *goredis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *goredis.IntCmd
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	Close() error
}

// Source consumes a stream through a consumer group.
type Source struct {
	client    streamClient
	stream    string
	group     string
	consumer  string
	blockTime time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	records  chan Entry
	closed   bool
	stopOnce sync.Once
}

var _ sluice.StreamSource[Entry] = (*Source)(nil)

// NewSource connects to cfg.Addr and consumes cfg.Stream through
// cfg.Group as cfg.Consumer. Panics when any of those is missing.
func NewSource(cfg config.RedisConfig, logger *slog.Logger) *Source {
	if cfg.Addr == "" {
		panic("redis: addr cannot be empty")
	}
	if cfg.Stream == "" {
		panic("redis: stream cannot be empty")
	}
	if cfg.Group == "" {
		panic("redis: group cannot be empty")
	}
	if cfg.Consumer == "" {
		panic("redis: consumer cannot be empty")
	}
	client := goredis.NewClient(&goredis.Options{Addr: cfg.Addr})
	return newSource(client, cfg, logger)
}

func newSource(client streamClient, cfg config.RedisConfig, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client:    client,
		stream:    cfg.Stream,
		group:     cfg.Group,
		consumer:  cfg.Consumer,
		blockTime: 5 * time.Second,
		logger:    logger,
		records:   make(chan Entry, 100),
	}
}

// Start creates the consumer group if needed and begins consuming.
// Call it before reading Records.
func (s *Source) Start(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	go s.readLoop(ctx)
	return nil
}

func (s *Source) readLoop(ctx context.Context) {
	defer close(s.records)

	for {
		if ctx.Err() != nil || s.isClosed() {
			return
		}

		streams, err := s.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, ">"},
			Count:    100,
			Block:    s.blockTime,
		}).Result()
		if err != nil {
			// Nil just means the block timed out with nothing new.
			if errors.Is(err, goredis.Nil) || ctx.Err() != nil {
				continue
			}
			if s.isClosed() {
				return
			}
			s.logger.Error("redis read failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				entry := Entry{ID: msg.ID, Values: msg.Values}
				select {
				case s.records <- entry:
					s.logger.Debug("received entry", "id", entry.ID)
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (s *Source) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Records implements sluice.StreamSource.
func (s *Source) Records() <-chan Entry {
	return s.records
}

// Ack removes the entry from the group's pending list.
func (s *Source) Ack(ctx context.Context, record Entry) error {
	return s.client.XAck(ctx, s.stream, s.group, record.ID).Err()
}

// Nack leaves the entry pending so the group redelivers it.
func (s *Source) Nack(ctx context.Context, record Entry, err error) error {
	s.logger.Warn("redis entry not accepted", "id", record.ID, "error", err)
	return nil
}

// Close stops the source and closes the underlying client, which
// unblocks any in-flight read and ends the Records channel.
func (s *Source) Close() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		err = s.client.Close()
	})
	return err
}

// ValuesFunc maps a record to the field-value pairs stored in its
// stream entry.
type ValuesFunc[T any] func(record T) map[string]any

// Sink appends records to a stream, one XADD per record.
type Sink[T any] struct {
	client streamClient
	stream string
	maxLen int64
	values ValuesFunc[T]
	logger *slog.Logger
}

var _ sluice.Sink[int] = (*Sink[int])(nil)

// NewSink connects to cfg.Addr and appends to cfg.Stream. A positive
// cfg.MaxLen caps the stream with approximate trimming. Panics when
// the addr, stream, or values func is missing.
func NewSink[T any](cfg config.RedisConfig, values ValuesFunc[T], logger *slog.Logger) *Sink[T] {
	if cfg.Addr == "" {
		panic("redis: addr cannot be empty")
	}
	client := goredis.NewClient(&goredis.Options{Addr: cfg.Addr})
	return newSink(client, cfg, values, logger)
}

func newSink[T any](client streamClient, cfg config.RedisConfig, values ValuesFunc[T], logger *slog.Logger) *Sink[T] {
	if cfg.Stream == "" {
		panic("redis: stream cannot be empty")
	}
	if values == nil {
		panic("redis: values func cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink[T]{
		client: client,
		stream: cfg.Stream,
		maxLen: cfg.MaxLen,
		values: values,
		logger: logger,
	}
}

// Write implements sluice.Sink. The first failed append aborts the
// batch.
func (s *Sink[T]) Write(ctx context.Context, records []T) error {
	for i, record := range records {
		args := &goredis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: s.maxLen > 0,
			Values: s.values(record),
		}
		if err := s.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("redis xadd %d/%d: %w", i+1, len(records), err)
		}
	}
	s.logger.Debug("appended batch", "stream", s.stream, "count", len(records))
	return nil
}

// Close closes the underlying client.
func (s *Sink[T]) Close() error {
	return s.client.Close()
}
