// Event HTTP handlers.
//
// This file exposes the webhook endpoints the messaging channel adapter calls
// for every inbound user event:
//   - POST /events/text      (command text: entrada, salida, estado, ...)
//   - POST /events/location  (location share answering a pending action)
//
// Both return the reply text the channel should deliver plus the structured
// outcome. Attendance rule failures travel inside the reply with 200.
//
// Redelivery:
// When an event key is present (Idempotency-Key or X-Event-ID header, or the
// body's event_id) and a reply was already produced for (user, key), the
// stored reply is returned verbatim with `Event-Replayed: true` and nothing is
// re-run. Deliveries of the same key are serialized from lookup to receipt
// save, so a redelivery racing the original waits and then replays.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/http/middleware"
	"github.com/tbourn/go-attendance-bot/internal/services"
)

// HeaderEventReplayed marks a response served from a stored receipt.
const HeaderEventReplayed = "Event-Replayed"

// maxEventKeyLen bounds body-supplied event ids.
const maxEventKeyLen = 200

// Receipt kinds.
const (
	receiptKindText     = "text"
	receiptKindLocation = "location"
)

//
// DTOs
//

// TextEventRequest is a text message received from the channel.
type TextEventRequest struct {
	// UserID is the channel's stable user id. The X-User-ID header may carry it instead.
	UserID string `json:"user_id" example:"5215512345678"`
	// DisplayID is the user's display handle, kept on the session.
	DisplayID string `json:"display_id,omitempty" example:"Ana"`
	// EventID is the channel's delivery id, used for redelivery detection.
	EventID string `json:"event_id,omitempty" example:"wamid.HBgLNTIxNTUxMjM0NTY3OBUCABIYFjNFQjA"`
	// Text is the raw message text.
	Text string `json:"text" example:"entrada"`
}

// LocationEventRequest is a location share received from the channel.
// Coordinates are optional on the wire; a share without them yields an
// INVALID verdict with the missing_coordinates reason.
type LocationEventRequest struct {
	UserID    string `json:"user_id" example:"5215512345678"`
	DisplayID string `json:"display_id,omitempty" example:"Ana"`
	EventID   string `json:"event_id,omitempty" example:"wamid.HBgLNTIxNTUxMjM0NTY3OBUCABIYFjNFQkI"`
	domain.LocationReading
}

//
// Helpers
//

// eventKey returns the validated header key, falling back to the body id.
func eventKey(c *gin.Context, fromBody string) string {
	if k, ok := middleware.EventKeyFrom(c); ok {
		return k
	}
	k := strings.TrimSpace(fromBody)
	if len(k) > maxEventKeyLen {
		return ""
	}
	return k
}

// replay writes the stored reply for (userID, key) and reports whether it did.
// Lookup failures fall through to normal processing.
func (h *Handlers) replay(c *gin.Context, userID, key string) bool {
	if h.receipts == nil || key == "" {
		return false
	}
	rec, err := h.receipts.Lookup(c.Request.Context(), userID, key)
	if err != nil || rec == nil {
		if err != nil && !errors.Is(err, services.ErrReceiptNotFound) {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Msg("receipt lookup failed")
		}
		return false
	}
	c.Header(HeaderEventReplayed, "true")
	c.Data(rec.Status, "application/json; charset=utf-8", []byte(rec.Payload))
	return true
}

// remember stores reply under (userID, key). Best effort: a duplicate from
// another process sharing the database is ignored.
func (h *Handlers) remember(ctx context.Context, c *gin.Context, userID, key, kind string, reply services.Reply) {
	if h.receipts == nil || key == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}
	err = h.receipts.Save(ctx, userID, key, kind, reply.Text, string(payload), http.StatusOK)
	if err != nil && !errors.Is(err, services.ErrDuplicateReceipt) {
		lg := middleware.LoggerFrom(c)
		lg.Warn().Err(err).Str("kind", kind).Msg("receipt save failed")
	}
}

// deliver answers one event. With an event key, the receipt lookup, run and
// receipt save happen under the (user, key) lock.
func (h *Handlers) deliver(c *gin.Context, userID, key, kind string, run func(context.Context) (services.Reply, error)) {
	ctx := c.Request.Context()
	if h.receipts != nil && key != "" {
		unlock, err := h.deliveries.Lock(ctx, userID+"\x00"+key)
		if err != nil {
			failEvent(c, err)
			return
		}
		defer unlock()
		if h.replay(c, userID, key) {
			return
		}
	}

	reply, err := run(ctx)
	if err != nil {
		failEvent(c, err)
		return
	}
	h.remember(ctx, c, userID, key, kind, reply)
	ok(c, http.StatusOK, reply)
}

// failEvent maps a service error to the error envelope.
func failEvent(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyUserID):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id required")
	case errors.Is(err, services.ErrEmptyText):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text required")
	case errors.Is(err, services.ErrUnknownAction):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown action")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "event not processed in time")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeEventFailed, err.Error())
	}
}

// checkRange rejects coordinates that are present but off the globe.
func checkRange(r domain.LocationReading) string {
	if r.Latitude != nil && (*r.Latitude < -90 || *r.Latitude > 90) {
		return "latitude must be within [-90, 90]"
	}
	if r.Longitude != nil && (*r.Longitude < -180 || *r.Longitude > 180) {
		return "longitude must be within [-180, 180]"
	}
	if r.AccuracyMeters != nil && *r.AccuracyMeters < 0 {
		return "accuracy_meters must not be negative"
	}
	return ""
}

//
// Handlers
//

// PostTextEvent godoc
// @ID          postTextEvent
// @Summary     Handle a text message
// @Description Routes a command (entrada, salida, estado, ubicaciones, ayuda [tema], cancelar)
// @Description and returns the reply for the channel. Redelivered events replay the stored reply.
// @Tags        Events
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Channel user id (overrides body user_id)"  example(5215512345678)
// @Param       Idempotency-Key  header  string  false "Event key for redelivery detection"
// @Param       X-Event-ID       header  string  false "Channel delivery id (used when Idempotency-Key is absent)"
// @Param       body             body    handlers.TextEventRequest  true  "Text event"
//
// @Success     200  {object}  services.Reply         "Reply to deliver"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse "Timed out"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /events/text [post]
func (h *Handlers) PostTextEvent(c *gin.Context) {
	var req TextEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	uid, okUser := resolveUserID(c, req.UserID)
	if !okUser {
		fail(c, http.StatusBadRequest, ErrCodeUserMismatch, "user_id does not match X-User-ID")
		return
	}
	if !validUserID(uid) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("user_id required (max %d chars)", maxUserIDLen))
		return
	}

	h.deliver(c, uid, eventKey(c, req.EventID), receiptKindText, func(ctx context.Context) (services.Reply, error) {
		return h.conv.HandleText(ctx, uid, req.DisplayID, req.Text)
	})
}

// PostLocationEvent godoc
// @ID          postLocationEvent
// @Summary     Handle a location share
// @Description Validates the reading against the user's pending entrada/salida: freshness,
// @Description geofence, accuracy and fraud risk. Rule failures are returned with 200 and an
// @Description INVALID verdict; missing coordinates never count as a geofence rejection.
// @Tags        Events
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "Channel user id (overrides body user_id)"  example(5215512345678)
// @Param       Idempotency-Key  header  string  false "Event key for redelivery detection"
// @Param       X-Event-ID       header  string  false "Channel delivery id (used when Idempotency-Key is absent)"
// @Param       body             body    handlers.LocationEventRequest  true  "Location event"
//
// @Success     200  {object}  services.Reply         "Reply and verdict"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse "Timed out"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /events/location [post]
func (h *Handlers) PostLocationEvent(c *gin.Context) {
	var req LocationEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	uid, okUser := resolveUserID(c, req.UserID)
	if !okUser {
		fail(c, http.StatusBadRequest, ErrCodeUserMismatch, "user_id does not match X-User-ID")
		return
	}
	if !validUserID(uid) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("user_id required (max %d chars)", maxUserIDLen))
		return
	}
	if msg := checkRange(req.LocationReading); msg != "" {
		fail(c, http.StatusBadRequest, ErrCodeInvalidCoordinates, msg)
		return
	}

	h.deliver(c, uid, eventKey(c, req.EventID), receiptKindLocation, func(ctx context.Context) (services.Reply, error) {
		return h.conv.HandleLocation(ctx, uid, req.DisplayID, req.LocationReading)
	})
}
