package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"activity_id":"abc","user_id":"user-1","source":"github","activity_type":"commit","score":10,"created_at":"2026-08-24T10:00:00Z"}`)
	msg := wireMessage("ledger_activity_events", 10, "activity.ingested", "user-1", "ledger_activity_events-value", 42, payload)

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "activity.ingested", handler.last.EventType)
	require.Equal(t, "user-1", handler.last.UserID)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))

	event, decodeErr := handler.last.ActivityIngested()
	require.NoError(t, decodeErr)
	require.Equal(t, "abc", event.ActivityID)
	require.Equal(t, "github", event.Source)
	require.Equal(t, 10, event.Score)
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"user_id":"user-2","source":"stackoverflow","added":3,"skipped":1,"error_count":0,"finished_at":"2026-08-24T11:00:00Z"}`)
	msg := wireMessage("ledger_sync_events", 20, "sync.completed", "user-2", "ledger_sync_events-value", 99, payload)

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Missing the event_type header, so decode fails and the processor must
	// commit the record to avoid a poison-pill loop.
	msg := wireMessage("ledger_activity_events", 30, "activity.ingested", "user-3", "ledger_activity_events-value", 7, []byte(`{}`))
	msg.Headers = msg.Headers[1:]

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 0, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
}

func TestMessageDecodeHelpersCheckVariantTag(t *testing.T) {
	msg := Message{
		EventType: "sync.completed",
		Payload:   []byte(`{"user_id":"user-4","source":"github","added":1,"skipped":0,"error_count":0,"finished_at":"2026-08-24T12:00:00Z"}`),
	}

	event, err := msg.SyncCompleted()
	require.NoError(t, err)
	require.Equal(t, "user-4", event.UserID)
	require.Equal(t, 1, event.Added)

	_, err = msg.ActivityIngested()
	require.Error(t, err)
}

func wireMessage(topic string, offset int64, eventType, userID, subject string, schemaID int, payload []byte) kafka.Message {
	value := make([]byte, 5+len(payload))
	value[0] = 0
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)

	return kafka.Message{
		Topic:     topic,
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "user_id", Value: []byte(userID)},
			{Key: "schema_subject", Value: []byte(subject)},
		},
	}
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
