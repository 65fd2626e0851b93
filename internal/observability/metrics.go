package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	entriesRecordedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "ledger",
		Name:      "entries_recorded_total",
		Help:      "Number of check-ins appended to the entry ledger.",
	}, []string{"tenant"})

	entriesClosedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gym_service",
		Subsystem: "ledger",
		Name:      "entries_closed_total",
		Help:      "Number of check-outs recorded against open entries.",
	}, []string{"tenant"})

	stayDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gym_service",
		Subsystem: "ledger",
		Name:      "stay_duration_minutes",
		Help:      "Whole-minute duration of closed entries.",
		Buckets:   []float64{15, 30, 45, 60, 90, 120, 180, 240},
	})

	lastEntryGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gym_service",
		Subsystem: "ledger",
		Name:      "last_entry_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent check-in persisted to Postgres.",
	})

	occupancyGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gym_service",
		Subsystem: "occupancy",
		Name:      "current_visitors",
		Help:      "Open entry records observed by the last occupancy read, per tenant.",
	}, []string{"tenant"})

	occupancyPercentGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gym_service",
		Subsystem: "occupancy",
		Name:      "percentage",
		Help:      "Unclamped occupancy percentage observed by the last occupancy read, per tenant.",
	}, []string{"tenant"})

	httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gym_service",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency of HTTP requests by method and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "code"})
)

func init() {
	prometheus.MustRegister(
		entriesRecordedCounter,
		entriesClosedCounter,
		stayDuration,
		lastEntryGauge,
		occupancyGauge,
		occupancyPercentGauge,
		httpRequestDuration,
	)
}

// RecordEntryRecorded counts a check-in and moves the persistence watermark.
func RecordEntryRecorded(tenant string, ts time.Time) {
	entriesRecordedCounter.WithLabelValues(tenant).Inc()
	if ts.IsZero() {
		return
	}
	lastEntryGauge.Set(float64(ts.Unix()))
}

// RecordEntryClosed counts a check-out and observes the stay length.
func RecordEntryClosed(tenant string, durationMin int) {
	entriesClosedCounter.WithLabelValues(tenant).Inc()
	stayDuration.Observe(float64(durationMin))
}

// RecordOccupancy publishes the latest occupancy reading for a tenant.
func RecordOccupancy(tenant string, current int, percentage float64) {
	occupancyGauge.WithLabelValues(tenant).Set(float64(current))
	occupancyPercentGauge.WithLabelValues(tenant).Set(percentage)
}

// ObserveHTTPRequest records request latency.
func ObserveHTTPRequest(method, code string, elapsed time.Duration) {
	httpRequestDuration.WithLabelValues(method, code).Observe(elapsed.Seconds())
}
