// Package observability holds the Prometheus collectors shared by the sync
// client and the collection service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SyncOutcomes counts finished reconciliations by collection, operation and result.
	SyncOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "sync",
		Name:      "outcomes_total",
		Help:      "Reconciliations finished, labeled by collection, operation and result (applied, applied_local_only).",
	}, []string{"collection", "operation", "result"})

	// LocalFailures counts swallowed local-store failures by kind.
	LocalFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "localstore",
		Name:      "failures_total",
		Help:      "Local store failures absorbed as empty reads or dropped writes, labeled by kind.",
	}, []string{"kind"})

	reconcileDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fittracker",
		Subsystem: "sync",
		Name:      "reconcile_duration_seconds",
		Help:      "Time spent in the remote half of a reconciliation.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"collection", "operation"})

	pendingTombstones = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fittracker",
		Subsystem: "sync",
		Name:      "pending_remote_deletes",
		Help:      "Records deleted locally whose remote delete has not succeeded yet.",
	}, []string{"collection"})

	recordPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittracker",
		Subsystem: "collections",
		Name:      "last_record_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent record persisted by the collection service.",
	})
)

func init() {
	prometheus.MustRegister(SyncOutcomes, LocalFailures, reconcileDuration, pendingTombstones, recordPersistGauge)
}

// RecordOutcome counts one finished reconciliation and its remote latency.
func RecordOutcome(collection, operation, result string, elapsed time.Duration) {
	SyncOutcomes.WithLabelValues(collection, operation, result).Inc()
	reconcileDuration.WithLabelValues(collection, operation).Observe(elapsed.Seconds())
}

// RecordLocalFailure counts one absorbed local-store failure.
func RecordLocalFailure(kind string) {
	LocalFailures.WithLabelValues(kind).Inc()
}

// RecordPendingDeletes sets the tombstone gauge for a collection.
func RecordPendingDeletes(collection string, n int) {
	pendingTombstones.WithLabelValues(collection).Set(float64(n))
}

// RecordRecordPersisted updates the persistence watermark gauge.
func RecordRecordPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	recordPersistGauge.Set(float64(ts.Unix()))
}
