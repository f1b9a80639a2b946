package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestPublishRecordsGroupsByTopicWithRecordHeaders(t *testing.T) {
	publisher, writers := fakePublisher(nil)

	err := publisher.PublishRecords(context.Background(), []Message{
		{EventID: 1, OwnerKey: "alice", AggregateType: "foods", EventType: "record.upserted", Topic: "fittracker.records", PartitionKey: "alice:foods", Payload: json.RawMessage(`{"record_id":"a"}`)},
		{EventID: 2, OwnerKey: "alice", AggregateType: "goals", EventType: "record.deleted", Topic: "fittracker.audit", PartitionKey: "alice:goals", Payload: json.RawMessage(`{"record_id":"b"}`)},
		{EventID: 3, OwnerKey: "bob", AggregateType: "workouts", EventType: "record.deleted", Topic: "fittracker.records", Payload: json.RawMessage(`{"record_id":"c"}`)},
	})
	require.NoError(t, err)

	require.Len(t, writers, 2)
	records := writers["fittracker.records"].written
	require.Len(t, records, 2)
	require.Equal(t, "alice:foods", string(records[0].Key))
	require.Equal(t, `{"record_id":"a"}`, string(records[0].Value))
	// No stored partition key: owner and collection.
	require.Equal(t, "bob:workouts", string(records[1].Key))
	require.Equal(t, map[string]string{
		HeaderEventType:  "record.deleted",
		HeaderCollection: "workouts",
		HeaderEventID:    "3",
		HeaderOwnerKey:   "bob",
	}, headerMap(records[1]))
	require.True(t, records[1].Time.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))

	require.Len(t, writers["fittracker.audit"].written, 1)
	require.Equal(t, "goals", headerMap(writers["fittracker.audit"].written[0])[HeaderCollection])
}

func TestPublishRecordsReusesWritersAndCloses(t *testing.T) {
	publisher, writers := fakePublisher(nil)
	msg := Message{EventID: 1, OwnerKey: "alice", AggregateType: "foods", EventType: "record.upserted", Topic: "fittracker.records", Payload: json.RawMessage(`{}`)}

	require.NoError(t, publisher.PublishRecords(context.Background(), []Message{msg}))
	require.NoError(t, publisher.PublishRecords(context.Background(), []Message{msg}))
	require.Len(t, writers, 1)
	require.Len(t, writers["fittracker.records"].written, 2)

	require.NoError(t, publisher.Close())
	require.True(t, writers["fittracker.records"].closed)
}

func TestPublishRecordsWrapsWriterError(t *testing.T) {
	broker := errors.New("broker unavailable")
	publisher, _ := fakePublisher(broker)

	err := publisher.PublishRecords(context.Background(), []Message{
		{EventID: 4, AggregateType: "foods", EventType: "record.upserted", Topic: "fittracker.records", Payload: json.RawMessage(`{}`)},
	})
	require.ErrorIs(t, err, broker)
	require.ErrorContains(t, err, "fittracker.records")
}

func fakePublisher(err error) (*RecordPublisher, map[string]*fakeWriter) {
	writers := make(map[string]*fakeWriter)
	publisher := NewRecordPublisher([]string{"localhost:9092"})
	publisher.newWriter = func(topic string) topicWriter {
		w := &fakeWriter{err: err}
		writers[topic] = w
		return w
	}
	publisher.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	return publisher, writers
}

func headerMap(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

type fakeWriter struct {
	written []kafka.Message
	closed  bool
	err     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}
