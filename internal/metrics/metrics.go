// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline, with careful attention to label cardinality:
//
//   - kind:   the update kind discriminant, a closed set of fourteen values
//   - reason: the rejection class (no_payload, ambiguous_payload,
//     invalid_payload, storage), also a closed set
//
// All collectors are safe for concurrent use.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ingested counts updates durably recorded, by kind.
	ingested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_updates_ingested_total",
			Help: "Total number of updates durably recorded.",
		},
		[]string{"kind"},
	)

	// duplicates counts redelivered update ids resolved as no-ops,
	// by kind. The feed is at-least-once, so a non-zero rate is normal.
	duplicates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_updates_duplicate_total",
			Help: "Total number of redelivered updates resolved as no-ops.",
		},
		[]string{"kind"},
	)

	// rejected counts updates refused before any write, by reason.
	rejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_updates_rejected_total",
			Help: "Total number of updates rejected by validation or storage.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(ingested, duplicates, rejected)
}

// Ingested records one durably stored update of the given kind.
func Ingested(kind string) { ingested.WithLabelValues(kind).Inc() }

// Duplicate records one redelivered update resolved as a no-op.
func Duplicate(kind string) { duplicates.WithLabelValues(kind).Inc() }

// Rejected records one refused update by rejection class.
func Rejected(reason string) { rejected.WithLabelValues(reason).Inc() }
