//go:build integration

package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
)

// After a failed dispatch and a DLQ requeue, the event must land on the real
// broker with Confluent framing intact.
func TestDLQReplayDeliversToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pool, cleanup := setupPostgres(t, ctx)
	defer cleanup()

	userID := uuid.NewString()
	activityID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, userID, activityID, "activity.ingested"))

	registry := &stubRegistry{id: 100}

	failing := &stubProducer{err: errors.New("upstream kafka unavailable")}
	dispatcher := NewDispatcher(pool, failing, registry, 5*time.Millisecond, 10)
	require.NoError(t, dispatcher.processBatch(ctx))

	var dlqCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq`).Scan(&dlqCount))
	require.Equal(t, 1, dlqCount, "expected message routed to DLQ on failure")

	manager := NewDLQManager(pool, 5, time.Second)
	replayed, err := manager.RunOnce(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, replayed)

	kContainer, err := kafkacontainer.RunContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kContainer.Terminate(context.Background()) })

	brokers, err := kContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             "ledger_activity_events",
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	producer := NewKafkaProducer(brokers)
	defer producer.Close()

	dispatcher = NewDispatcher(pool, producer, registry, 5*time.Millisecond, 10)
	require.NoError(t, dispatcher.processBatch(ctx))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   "ledger_activity_events",
		GroupID: "dlq-replay-test",
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	require.Equal(t, userID, string(msg.Key))

	require.Greater(t, len(msg.Value), 5)
	require.Equal(t, byte(0), msg.Value[0])
	require.Equal(t, uint32(100), binary.BigEndian.Uint32(msg.Value[1:5]))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value[5:], &payload))
	require.Equal(t, activityID, payload["activity_id"])
	require.Equal(t, userID, payload["user_id"])
}
