package domain

// ReasonCode is the closed set of domain-rule failures. Rule failures are
// returned as values so callers can always render a reply.
type ReasonCode string

const (
	ReasonMissingCoordinates   ReasonCode = "MISSING_COORDINATES"
	ReasonStaleReading         ReasonCode = "STALE_READING"
	ReasonInsufficientAccuracy ReasonCode = "INSUFFICIENT_ACCURACY"
	ReasonGeofenceMismatch     ReasonCode = "GEOFENCE_MISMATCH"
	ReasonFraudRiskHigh        ReasonCode = "FRAUD_RISK_HIGH"
	ReasonUserBlocked          ReasonCode = "USER_BLOCKED"
	ReasonPendingConflict      ReasonCode = "PENDING_CONFLICT"
	ReasonPolicyViolation      ReasonCode = "POLICY_VIOLATION"
	ReasonInvalidState         ReasonCode = "INVALID_STATE"
	ReasonStoreUnavailable     ReasonCode = "STORE_UNAVAILABLE"
)

// Reason pairs a code with a human-readable message.
type Reason struct {
	Code    ReasonCode `json:"code"`
	Message string     `json:"message"`
}

// HasReason reports whether reasons contains code.
func HasReason(reasons []Reason, code ReasonCode) bool {
	for _, r := range reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}
