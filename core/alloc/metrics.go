package alloc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for exprora_assignments_total.
const (
	OutcomeSticky     = "sticky"     // existing assignment returned
	OutcomeAssigned   = "assigned"   // this call inserted the assignment
	OutcomeAdopted    = "adopted"    // a concurrent resolver won, its variant was adopted
	OutcomeExcluded   = "excluded"   // traffic gate skipped the visitor
	OutcomeUntargeted = "untargeted" // targeting rules did not match
	OutcomeOrphaned   = "orphaned"   // assigned variant is gone from the running set
	OutcomeEmpty      = "empty"      // experiment has no variants
	OutcomeFailed     = "failed"
)

var (
	assignmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exprora_assignments_total",
			Help: "Per-experiment allocation outcomes",
		},
		[]string{"outcome"},
	)

	resolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exprora_resolve_duration_seconds",
			Help:    "Time to resolve a visitor against all running experiments",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"experiments"},
	)
)

// experimentsBucket keeps the duration label cardinality small.
func experimentsBucket(n int) string {
	switch {
	case n == 0:
		return "0"
	case n <= 5:
		return "1-5"
	case n <= 20:
		return "6-20"
	default:
		return "21+"
	}
}
