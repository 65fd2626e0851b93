package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/gymassistant/internal/events"
)

// outboxRecord is one event written in the same transaction as its state change.
type outboxRecord struct {
	tenantID      string
	aggregateType string
	aggregateID   string
	eventType     string
	partitionKey  string
	payload       any
}

func insertOutbox(ctx context.Context, tx pgx.Tx, rec outboxRecord) error {
	body, err := json.Marshal(rec.payload)
	if err != nil {
		return err
	}

	meta, err := events.Lookup(rec.eventType)
	if err != nil {
		return err
	}

	dedupeKey := fmt.Sprintf("%s:%s", rec.aggregateID, rec.eventType)

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		rec.tenantID,
		rec.aggregateType,
		rec.aggregateID,
		rec.eventType,
		meta.Topic,
		meta.SchemaSubject,
		rec.partitionKey,
		body,
		dedupeKey,
	)
	return err
}
