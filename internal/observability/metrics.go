package observability

// Domain metrics for the attendance flow. Label values come from closed sets
// (actions, statuses, flag kinds, severities, store operations) so series
// cardinality stays bounded.

import "github.com/prometheus/client_golang/prometheus"

var (
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_validations_total",
			Help: "Location validations by action and outcome.",
		},
		[]string{"action", "status"},
	)

	fraudFlagsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fraud_flags_total",
			Help: "Fraud flags raised by kind and severity.",
		},
		[]string{"kind", "severity"},
	)

	fraudBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fraud_blocks_total",
			Help: "Temporary user blocks triggered.",
		},
	)

	storeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_store_failures_total",
			Help: "Record store calls that failed after retries, by operation.",
		},
		[]string{"op"},
	)

	pendingExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pending_actions_expired_total",
			Help: "Pending actions that lapsed without a location reading.",
		},
	)
)

func init() {
	prometheus.MustRegister(validationsTotal, fraudFlagsTotal, fraudBlocksTotal, storeFailuresTotal, pendingExpiredTotal)
}

// ObserveValidation counts one completed location validation.
func ObserveValidation(action, status string) {
	validationsTotal.WithLabelValues(action, status).Inc()
}

// ObserveFlag counts one raised fraud flag.
func ObserveFlag(kind, severity string) {
	fraudFlagsTotal.WithLabelValues(kind, severity).Inc()
}

// ObserveBlock counts one newly triggered block.
func ObserveBlock() { fraudBlocksTotal.Inc() }

// ObserveStoreFailure counts a record store call that exhausted its retries.
func ObserveStoreFailure(op string) {
	storeFailuresTotal.WithLabelValues(op).Inc()
}

// ObservePendingExpired counts a lapsed pending action.
func ObservePendingExpired() { pendingExpiredTotal.Inc() }
