// Attendance HTTP handlers.
//
// This file wires the handler set to its service contracts and holds the
// helpers shared by the event (webhook) and read endpoints:
//   - POST /events/text             (command text from the messaging channel)
//   - POST /events/location         (location share from the messaging channel)
//   - GET  /employees/{id}/state    (derived state, pending action, risk record)
//   - GET  /employees/{id}/attendance (paginated records, ETag support)
//   - GET  /zones                   (configured zones in match order)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including replays and
// conditional responses).
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/employee"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/http/middleware"
	"github.com/tbourn/go-attendance-bot/internal/risk"
	"github.com/tbourn/go-attendance-bot/internal/serial"
	"github.com/tbourn/go-attendance-bot/internal/services"
	"github.com/tbourn/go-attendance-bot/internal/utils"
)

//
// Service contracts (context-aware)
//

// ConversationService answers messaging-channel events.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConversationService interface {
	// HandleText routes a command text and returns the reply.
	HandleText(ctx context.Context, userID, displayID, text string) (services.Reply, error)
	// HandleLocation validates a reading against the user's pending action.
	HandleLocation(ctx context.Context, userID, displayID string, r domain.LocationReading) (services.Reply, error)
}

// ReceiptService stores and replays event replies.
type ReceiptService interface {
	Lookup(ctx context.Context, userID, key string) (*domain.EventReceipt, error)
	Save(ctx context.Context, userID, key, kind, reply, payload string, status int) error
}

// EmployeeService exposes derived employee state.
type EmployeeService interface {
	State(ctx context.Context, userID string) employee.State
	Pending(userID string) (employee.Pending, bool)
}

// RiskService exposes a user's fraud record.
type RiskService interface {
	Snapshot(userID string) risk.Record
}

// ZoneService lists the configured zones.
type ZoneService interface {
	Zones() []geofence.Zone
}

// AttendanceService lists persisted attendance records.
type AttendanceService interface {
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.AttendanceRecord, int64, error)
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Receipts may be nil, which
// disables event replay.
type Services struct {
	Conversation ConversationService
	Receipts     ReceiptService
	Employees    EmployeeService
	Risk         RiskService
	Zones        ZoneService
	Attendance   AttendanceService
}

// Handlers groups the HTTP endpoints of the attendance bot.
type Handlers struct {
	conv       ConversationService
	receipts   ReceiptService
	employees  EmployeeService
	risk       RiskService
	zones      ZoneService
	attendance AttendanceService

	// deliveries serializes requests sharing a (user, event key).
	deliveries serial.KeyedMutex
}

// New constructs a Handlers instance bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		conv:       s.Conversation,
		receipts:   s.Receipts,
		employees:  s.Employees,
		risk:       s.Risk,
		zones:      s.Zones,
		attendance: s.Attendance,
	}
}

// maxUserIDLen matches the user_id column width.
const maxUserIDLen = 64

// resolveUserID picks the event's user: the X-User-ID header (set by the
// channel adapter and stored by middleware.Identity) wins, the JSON body is
// the fallback. ok is false when both are present and disagree.
func resolveUserID(c *gin.Context, fromBody string) (id string, ok bool) {
	header := middleware.UserID(c)
	body := strings.TrimSpace(fromBody)
	switch {
	case header != "" && body != "" && header != body:
		return "", false
	case header != "":
		return header, true
	default:
		return body, true
	}
}

// validUserID reports whether id can name an employee.
func validUserID(id string) bool {
	return id != "" && len(id) <= maxUserIDLen
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// Page size bounds for list endpoints.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// pageFrom parses page and page_size query params.
func pageFrom(c *gin.Context) utils.Page {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
}
