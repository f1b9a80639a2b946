package outbox

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Headers carried by every record event. The personal-best consumer routes on
// event_type and collection.
const (
	HeaderEventType  = "event_type"
	HeaderCollection = "collection"
	HeaderOwnerKey   = "owner_key"
	HeaderEventID    = "event_id"
)

type topicWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordPublisher publishes claimed outbox rows as Kafka record events. Events
// for one owner and collection share a partition key so consumers see them in
// commit order.
type RecordPublisher struct {
	mu        sync.Mutex
	writers   map[string]topicWriter
	newWriter func(topic string) topicWriter
	now       func() time.Time
}

// NewRecordPublisher creates a RecordPublisher writing to brokers.
func NewRecordPublisher(brokers []string) *RecordPublisher {
	return &RecordPublisher{
		writers: make(map[string]topicWriter),
		newWriter: func(topic string) topicWriter {
			return &kafka.Writer{
				Addr:                   kafka.TCP(brokers...),
				Topic:                  topic,
				Balancer:               &kafka.Hash{},
				RequiredAcks:           kafka.RequireAll,
				Compression:            kafka.Snappy,
				AllowAutoTopicCreation: true,
			}
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// PublishRecords writes msgs to their topics. Topics are written in the order
// they first appear and rows keep their claim order within a topic.
func (p *RecordPublisher) PublishRecords(ctx context.Context, msgs []Message) error {
	batches := make(map[string][]kafka.Message)
	var order []string
	now := p.now()
	for _, msg := range msgs {
		if _, ok := batches[msg.Topic]; !ok {
			order = append(order, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], recordMessage(msg, now))
	}

	for _, topic := range order {
		if err := p.writerFor(topic).WriteMessages(ctx, batches[topic]...); err != nil {
			return fmt.Errorf("publish %d record events to %s: %w", len(batches[topic]), topic, err)
		}
	}
	return nil
}

// PartitionKey is the key record events are published under when the outbox
// row carries none.
func PartitionKey(ownerKey, collection string) string {
	return ownerKey + ":" + collection
}

func recordMessage(msg Message, now time.Time) kafka.Message {
	key := msg.PartitionKey
	if key == "" {
		key = PartitionKey(msg.OwnerKey, msg.AggregateType)
	}
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(msg.EventType)},
		{Key: HeaderCollection, Value: []byte(msg.AggregateType)},
		{Key: HeaderEventID, Value: []byte(strconv.FormatInt(msg.EventID, 10))},
	}
	if msg.OwnerKey != "" {
		headers = append(headers, kafka.Header{Key: HeaderOwnerKey, Value: []byte(msg.OwnerKey)})
	}
	return kafka.Message{
		Key:     []byte(key),
		Value:   []byte(msg.Payload),
		Time:    now,
		Headers: headers,
	}
}

func (p *RecordPublisher) writerFor(topic string) topicWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}
	writer := p.newWriter(topic)
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *RecordPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
