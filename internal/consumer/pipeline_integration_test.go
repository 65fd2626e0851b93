//go:build integration

package consumer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/gymassistant/internal/domain"
	"example.com/gymassistant/internal/events"
	"example.com/gymassistant/internal/outbox"
	persistence "example.com/gymassistant/internal/persistence/postgres"
	"example.com/gymassistant/internal/testsupport"
)

func TestEntryEventsFlowIntoEventLog(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	pool := testsupport.StartPostgres(ctx, t)
	repo := persistence.NewRepository(pool)
	require.NoError(t, repo.UpsertGym(ctx, domain.Gym{ID: "gym-a", Name: "Alpha", Capacity: 10, Subdomain: "alpha"}))
	member := domain.Identity{ID: "member-a", PhoneNumber: "+10000000002", Name: "Max", Role: domain.RoleMember, Status: domain.StatusApproved, TenantKey: "gym-a"}
	require.NoError(t, repo.CreateIdentity(ctx, member))

	service := domain.NewService(repo)
	record, err := service.RecordEntry(ctx, &member, time.Time{})
	require.NoError(t, err)
	_, err = service.RecordExit(ctx, &member, record.ID, time.Time{})
	require.NoError(t, err)

	kafkaC, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0", kafkacontainer.WithClusterID("gym-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)

	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: events.TopicEntryEvents, NumPartitions: 1, ReplicationFactor: 1}))
	require.NoError(t, conn.Close())

	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":3}`))
	}))
	defer registry.Close()

	producer := outbox.NewKafkaProducer(brokers)
	defer producer.Close()
	dispatcherCtx, stopDispatcher := context.WithCancel(ctx)
	dispatcher := outbox.NewDispatcher(pool, producer, outbox.NewSchemaRegistryClient(registry.URL), 50*time.Millisecond, 10)
	go dispatcher.Start(dispatcherCtx)
	defer func() {
		stopDispatcher()
		dispatcher.Wait()
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "gym-event-log-test",
		Topic:       events.TopicEntryEvents,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	proc := NewProcessor(reader, NewPersistenceHandler(pool), WithLogger(testLogger(t)))
	go func() { _ = proc.Run(consumerCtx) }()

	require.Eventually(t, func() bool {
		var n int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM gym_event_log WHERE tenant_id = 'gym-a'`).Scan(&n); err != nil {
			return false
		}
		return n == 2
	}, 2*time.Minute, 500*time.Millisecond)

	var eventType, key string
	var schemaID int
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT event_type, message_key, schema_id FROM gym_event_log ORDER BY kafka_offset DESC LIMIT 1`).Scan(&eventType, &key, &schemaID))
	require.Equal(t, events.TypeEntryClosed, eventType)
	require.Equal(t, "gym-a:member-a", key)
	require.Equal(t, 3, schemaID)
}
