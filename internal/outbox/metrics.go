package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "outbox",
		Name:      "record_events_delivered_total",
		Help:      "Record events published to Kafka, by collection.",
	}, []string{"collection"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "outbox",
		Name:      "record_events_failed_total",
		Help:      "Record event deliveries returned for retry, by collection.",
	}, []string{"collection"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fittracker",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, publishing and marking one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration)
}

// countByCollection adds one to counter per message, labelled by collection.
func countByCollection(counter *prometheus.CounterVec, messages []Message) {
	counts := make(map[string]int)
	for _, msg := range messages {
		counts[msg.AggregateType]++
	}
	for collection, n := range counts {
		counter.WithLabelValues(collection).Add(float64(n))
	}
}
