// Package metrics provides Prometheus metrics for the dedupe service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal tracks dedupe batch runs by status
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedupe",
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of dedupe batch runs by status",
		},
		[]string{"status"},
	)

	// RunDuration tracks dedupe batch run duration in seconds
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dedupe",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Duration of dedupe batch runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// FingerprintsGenerated tracks fingerprints written per outcome
	FingerprintsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedupe",
			Subsystem: "fingerprint",
			Name:      "generated_total",
			Help:      "Total number of fingerprints generated by outcome",
		},
		[]string{"outcome"},
	)

	// PairsScored tracks scored pairs by decision
	PairsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedupe",
			Subsystem: "matching",
			Name:      "pairs_scored_total",
			Help:      "Total number of candidate pairs scored by decision",
		},
		[]string{"decision"},
	)

	// CandidatesPerListing tracks candidate set sizes
	CandidatesPerListing = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dedupe",
			Subsystem: "matching",
			Name:      "candidates_per_listing",
			Help:      "Number of candidates found per probed listing",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// AIRequestsTotal tracks tie-break LLM calls by outcome
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedupe",
			Subsystem: "tiebreak",
			Name:      "requests_total",
			Help:      "Total number of tie-break LLM requests by outcome",
		},
		[]string{"outcome"},
	)

	// AIRequestDuration tracks tie-break LLM call duration
	AIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dedupe",
			Subsystem: "tiebreak",
			Name:      "request_duration_seconds",
			Help:      "Duration of tie-break LLM requests in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedupe",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaMessagesConsumed tracks Kafka messages consumed
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedupe",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of messages consumed from Kafka",
		},
		[]string{"topic", "status"},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dedupe",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RecordRun records a dedupe batch run metric
func RecordRun(status string, durationSeconds float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(durationSeconds)
}

// RecordPairScored records a scored pair by its decision
func RecordPairScored(decision string) {
	PairsScored.WithLabelValues(decision).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordDatabaseQuery records one database query duration
func RecordDatabaseQuery(operation string, durationSeconds float64) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(durationSeconds)
}
