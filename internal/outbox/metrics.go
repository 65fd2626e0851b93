package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Every event counter carries the gym's tenant key, matching the ledger metrics.
var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Outbox events published to Kafka, per gym and topic.",
	}, []string{"tenant", "topic"})

	parkedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "outbox",
		Name:      "events_parked_total",
		Help:      "Outbox events that failed delivery and were parked in the DLQ, per gym, topic and failing stage.",
	}, []string{"tenant", "topic", "stage"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gym_service",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent fetching, delivering, and marking outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqRequeuedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "dlq",
		Name:      "messages_requeued_total",
		Help:      "DLQ entries reinserted into the primary outbox.",
	}, []string{"tenant", "event_type"})

	dlqQuarantinedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "dlq",
		Name:      "messages_quarantined_total",
		Help:      "DLQ entries quarantined after exhausting retries.",
	}, []string{"tenant", "event_type"})

	dlqRetryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "dlq",
		Name:      "retry_scheduled_total",
		Help:      "Times a DLQ entry was scheduled for a later retry.",
	}, []string{"tenant", "event_type"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gym_service",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Entries waiting in the DLQ, per gym. Quarantined entries are excluded.",
	}, []string{"tenant"})
)

func init() {
	prometheus.MustRegister(
		deliveredCounter, parkedCounter, batchDuration,
		dlqRequeuedCounter, dlqQuarantinedCounter, dlqRetryCounter, dlqBacklogGauge,
	)
}

func recordDelivered(msg Message) {
	deliveredCounter.WithLabelValues(msg.TenantID, msg.Topic).Inc()
}

func recordParked(msg Message, stage string) {
	parkedCounter.WithLabelValues(msg.TenantID, msg.Topic, stage).Inc()
}

func recordDLQRequeued(entry dlqEntry) {
	dlqRequeuedCounter.WithLabelValues(entry.TenantID, entry.EventType).Inc()
}

func recordDLQQuarantined(entry dlqEntry) {
	dlqQuarantinedCounter.WithLabelValues(entry.TenantID, entry.EventType).Inc()
}

func recordDLQRetry(entry dlqEntry) {
	dlqRetryCounter.WithLabelValues(entry.TenantID, entry.EventType).Inc()
}

// updateBacklogGauge rebuilds the per-gym backlog so drained gyms drop out.
func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	rows, err := pool.Query(ctx, `SELECT tenant_id, COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL GROUP BY tenant_id`)
	if err != nil {
		return
	}
	defer rows.Close()

	backlog := make(map[string]int)
	for rows.Next() {
		var (
			tenant string
			count  int
		)
		if err := rows.Scan(&tenant, &count); err != nil {
			return
		}
		backlog[tenant] = count
	}
	if rows.Err() != nil {
		return
	}

	dlqBacklogGauge.Reset()
	for tenant, count := range backlog {
		dlqBacklogGauge.WithLabelValues(tenant).Set(float64(count))
	}
}
