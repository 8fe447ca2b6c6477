// Package services defines the attendance business logic: the validation
// orchestrator, the conversational command layer, the guarded record store,
// event receipts, and the background sweeper. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Domain-rule failures are not errors: they travel as domain.Reason values
// inside decisions and verdicts so a reply can always be rendered. The values
// below cover invalid input and infrastructure failures. Translation into HTTP
// status codes is performed at the handler layer.
package services

import "errors"

var (
	// ErrEmptyUserID is returned when an event carries no user id.
	ErrEmptyUserID = errors.New("user id is empty")

	// ErrUnknownAction is returned when an action is neither entrada nor salida.
	ErrUnknownAction = errors.New("unknown attendance action")

	// ErrMissingCoordinates is returned when a reading lacks latitude or longitude.
	ErrMissingCoordinates = errors.New("reading has no coordinates")

	// ErrEmptyText is returned when a text event has no content.
	ErrEmptyText = errors.New("text is empty")

	// ErrStoreUnavailable wraps record store failures that survived retries.
	// Validation treats it as a soft failure; it is surfaced only to callers
	// that need to know whether a record was written.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrReceiptNotFound indicates no live receipt exists for an event key.
	ErrReceiptNotFound = errors.New("event receipt not found")

	// ErrDuplicateReceipt indicates a receipt was stored concurrently.
	ErrDuplicateReceipt = errors.New("event receipt already exists")
)
