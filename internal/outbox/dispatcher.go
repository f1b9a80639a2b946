// Package outbox delivers record events written by the Postgres repository to
// Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"
)

// Publisher delivers one claimed batch. RecordPublisher is the Kafka
// implementation.
type Publisher interface {
	PublishRecords(ctx context.Context, msgs []Message) error
}

// Store claims pending outbox rows and records what happened to them.
type Store interface {
	Claim(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, ids []int64, reason string) error
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64
	OwnerKey      string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	PartitionKey  string
	Payload       json.RawMessage
	Attempts      int
}

// Option configures optional behaviour for a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher drains the outbox table and delivers events to Kafka.
type Dispatcher struct {
	store            Store
	publisher        Publisher
	logger           *log.Logger
	pollInterval     time.Duration
	batchSize        int
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store, publisher Publisher, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:            store,
		publisher:        publisher,
		logger:           log.New(log.Writer(), "[outbox] ", log.LstdFlags),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if _, err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("dispatcher error: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// processBatch delivers one batch and returns how many events it claimed.
func (d *Dispatcher) processBatch(ctx context.Context) (int, error) {
	start := time.Now()

	messages, err := d.store.Claim(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}
	defer batchDuration.Observe(time.Since(start).Seconds())

	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}

	if err := d.publisher.PublishRecords(ctx, messages); err != nil {
		d.logger.Printf("delivery failure for %d events: %v", len(messages), err)
		countByCollection(failedCounter, messages)
		return len(messages), d.store.MarkFailed(ctx, ids, err.Error())
	}

	countByCollection(deliveredCounter, messages)
	return len(messages), d.store.MarkPublished(ctx, ids)
}
