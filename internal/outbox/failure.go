package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/gymassistant/internal/domain"
	persistence "example.com/gymassistant/internal/persistence/postgres"
)

// Delivery stages recorded with parked events.
const (
	stageSchema  = "schema_registry"
	stagePublish = "publish"
)

// deliveryError tags a dispatch failure with the stage and topic that produced it.
type deliveryError struct {
	stage string
	topic string
	err   error
}

func (e *deliveryError) Error() string {
	return fmt.Sprintf("%s failed for topic %s: %v", e.stage, e.topic, e.err)
}

func (e *deliveryError) Unwrap() error { return e.err }

// failureStage reports the stage of a delivery failure, "unknown" when untagged.
func failureStage(err error) string {
	var de *deliveryError
	if errors.As(err, &de) {
		return de.stage
	}
	return "unknown"
}

// DLQWriter parks events the dispatcher could not deliver. A gym's failed events are
// written together under that gym's tenant context.
type DLQWriter struct {
	pool *pgxpool.Pool
}

// NewDLQWriter initialises a writer backed by the provided connection pool.
func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// WriteTenant records messages of one gym in the DLQ, all or nothing. Messages of
// another tenant are refused.
func (w *DLQWriter) WriteTenant(ctx context.Context, tenant domain.TenantKey, messages []Message, cause error) error {
	stage := failureStage(cause)
	return persistence.InTenantTx(ctx, w.pool, tenant, func(tx pgx.Tx) error {
		for _, msg := range messages {
			if msg.TenantID != string(tenant) {
				return fmt.Errorf("event %d belongs to tenant %s, not %s", msg.EventID, msg.TenantID, tenant)
			}
			reason := fmt.Sprintf("%s: %v (topic=%s)", stage, cause, msg.Topic)
			if _, err := tx.Exec(ctx,
				`INSERT INTO outbox_dlq (tenant_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
                 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, NOW())`,
				msg.TenantID, msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason,
				msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// groupByTenant splits a claimed batch per gym, keeping claim order within each gym.
func groupByTenant(messages []Message) (map[domain.TenantKey][]Message, []domain.TenantKey) {
	groups := make(map[domain.TenantKey][]Message)
	order := make([]domain.TenantKey, 0)
	for _, msg := range messages {
		tenant := domain.TenantKey(msg.TenantID)
		if _, seen := groups[tenant]; !seen {
			order = append(order, tenant)
		}
		groups[tenant] = append(groups[tenant], msg)
	}
	return groups, order
}
