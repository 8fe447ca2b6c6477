package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, never
// on Message.
//
// Attendance rule failures (stale reading, geofence mismatch, block) are not
// errors here: they travel with 200 inside the verdict so the channel always
// has a reply to deliver.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "unavailable"

	// ErrCodeEventFailed: the event could not be processed; the channel may redeliver.
	ErrCodeEventFailed = "event_failed"
	// ErrCodeInvalidCoordinates: latitude or longitude present but off the globe.
	ErrCodeInvalidCoordinates = "invalid_coordinates"
	// ErrCodeUserMismatch: X-User-ID and body user_id disagree.
	ErrCodeUserMismatch = "user_mismatch"
	ErrCodeListFailed   = "list_failed"
)
