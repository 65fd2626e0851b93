package consumer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler writes consumed events into the gym_event_log audit table.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the provided pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores the event. Redelivered offsets are ignored so replays are idempotent.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	receivedAt := msg.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	_, err := h.pool.Exec(ctx,
		`INSERT INTO gym_event_log (tenant_id, event_type, schema_subject, schema_id, topic, partition, kafka_offset, message_key, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT (topic, partition, kafka_offset) DO NOTHING`,
		msg.TenantID,
		msg.EventType,
		msg.SchemaSubject,
		msg.SchemaID,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Key,
		msg.Payload,
		receivedAt,
	)
	return err
}
