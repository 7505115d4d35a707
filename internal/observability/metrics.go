package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recall"

var (
	// TurnsRecorded counts archived conversation turns.
	TurnsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_recorded_total",
			Help:      "Number of conversation turns written to the archive",
		},
		[]string{"status"},
	)

	// FactsExtracted counts fact candidates emitted by the extractor.
	FactsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_extracted_total",
			Help:      "Number of fact candidates extracted from user messages",
		},
		[]string{"type"},
	)

	// EmbeddingFailures counts embedding calls that fell back to the
	// empty-vector sentinel.
	EmbeddingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_failures_total",
			Help:      "Number of embedding calls that degraded to an empty vector",
		},
	)

	// StoreDegradations counts swallowed fact/theme write failures and
	// read failures treated as empty result sets.
	StoreDegradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_degradations_total",
			Help:      "Number of store failures absorbed as degraded results",
		},
		[]string{"op"},
	)

	// RecallDuration observes end-to-end recall latency.
	RecallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recall_duration_seconds",
			Help:      "End-to-end latency of context recall",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ContextStrength observes the strength signal of returned bundles.
	ContextStrength = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "context_strength",
			Help:      "Mean top-k similarity of returned context bundles",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	// EmbeddingCacheHits counts Redis embedding cache hits and misses.
	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_requests_total",
			Help:      "Embedding cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)
