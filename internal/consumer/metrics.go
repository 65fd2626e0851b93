package consumer

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// unknownTenant labels malformed messages whose tenant header is missing.
const unknownTenant = "unknown"

var (
	eventsLoggedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "event_log",
		Name:      "events_logged_total",
		Help:      "Gym events written to the event log, per gym and event type.",
	}, []string{"tenant", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "event_log",
		Name:      "handler_errors_total",
		Help:      "Gym events left uncommitted after a handler failure, per gym and event type.",
	}, []string{"tenant", "event_type"})

	malformedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "event_log",
		Name:      "malformed_messages_total",
		Help:      "Messages committed without handling because they failed to decode, per gym and reason.",
	}, []string{"tenant", "reason"})

	deliveryDelay = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gym_service",
		Subsystem: "event_log",
		Name:      "delivery_delay_seconds",
		Help:      "Time between a gym event being produced and being logged.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(eventsLoggedCounter, handlerErrorCounter, malformedCounter, deliveryDelay)
}

func recordLogged(msg Message, now time.Time) {
	eventsLoggedCounter.WithLabelValues(msg.TenantID, msg.EventType).Inc()
	if !msg.Timestamp.IsZero() && now.After(msg.Timestamp) {
		deliveryDelay.WithLabelValues(msg.EventType).Observe(now.Sub(msg.Timestamp).Seconds())
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.TenantID, msg.EventType).Inc()
}

func recordMalformed(msg kafka.Message, err error) {
	tenant := unknownTenant
	if value, ok := headerValue(msg, "tenant_id"); ok && len(value) > 0 {
		tenant = string(value)
	}
	malformedCounter.WithLabelValues(tenant, malformedReason(err)).Inc()
}

func malformedReason(err error) string {
	for _, candidate := range []error{errFraming, errEventType, errTenant, errPayload} {
		if errors.Is(err, candidate) {
			return candidate.Error()
		}
	}
	return "other"
}
