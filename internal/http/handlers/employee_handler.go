// Employee HTTP handlers.
//
// This file exposes the read API used by the channel integration and
// back-office tools:
//   - GET /employees/{id}/state       (derived state, pending action, risk record)
//   - GET /employees/{id}/attendance  (paginated records, ETag support)
//   - GET /zones                      (configured zones)
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-attendance-bot/internal/domain"
	"github.com/tbourn/go-attendance-bot/internal/employee"
	"github.com/tbourn/go-attendance-bot/internal/geofence"
	"github.com/tbourn/go-attendance-bot/internal/repo"
	"github.com/tbourn/go-attendance-bot/internal/risk"
	"github.com/tbourn/go-attendance-bot/internal/services"
)

//
// DTOs
//

// EmployeeStateResponse is the current picture of one employee.
type EmployeeStateResponse struct {
	UserID  string            `json:"user_id"`
	State   employee.State    `json:"state"`
	Pending *employee.Pending `json:"pending,omitempty"`
	Risk    risk.Record       `json:"risk"`
}

// ListAttendanceResponse contains a page of attendance records and pagination metadata.
type ListAttendanceResponse struct {
	Records    []domain.AttendanceRecord `json:"records"`
	Pagination Pagination                `json:"pagination"`
}

// ZonesResponse lists the configured zones in match order.
type ZonesResponse struct {
	Zones []geofence.Zone `json:"zones"`
}

// employeeID reads and checks the :id path parameter.
func employeeID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if !validUserID(id) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("employee id required (max %d chars)", maxUserIDLen))
		return "", false
	}
	return id, true
}

//
// Handlers
//

// GetEmployeeState godoc
// @ID          getEmployeeState
// @Summary     Get employee state
// @Description Returns the derived attendance state (IN/OUT, today's counters, warnings),
// @Description the live pending action if any, and the fraud risk record.
// @Tags        Employees
// @Produce     json
//
// @Param       id   path  string  true  "Employee (channel user) id"  example(5215512345678)
//
// @Success     200  {object}  handlers.EmployeeStateResponse
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Router      /employees/{id}/state [get]
func (h *Handlers) GetEmployeeState(c *gin.Context) {
	id, valid := employeeID(c)
	if !valid {
		return
	}

	resp := EmployeeStateResponse{
		UserID: id,
		State:  h.employees.State(c.Request.Context(), id),
		Risk:   h.risk.Snapshot(id),
	}
	if p, ok := h.employees.Pending(id); ok {
		resp.Pending = &p
	}
	ok(c, http.StatusOK, resp)
}

// ListAttendance godoc
// @ID          listAttendance
// @Summary     List attendance records (paginated)
// @Description Returns the employee's records, newest first, valid and invalid alike.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Employees
// @Produce     json
//
// @Param       id         path   string  true  "Employee (channel user) id"  example(5215512345678)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListAttendanceResponse
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /employees/{id}/attendance [get]
func (h *Handlers) ListAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	id, valid := employeeID(c)
	if !valid {
		return
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.attendance.(*services.AttendanceService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.AttendanceStats(ctx, db, id)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"attendance:%s:%d:%d"`, id, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	page := pageFrom(c)
	items, total, err := h.attendance.ListPage(ctx, id, page.Number, page.Size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := page.TotalPages(total)
	ok(c, http.StatusOK, ListAttendanceResponse{
		Records: items,
		Pagination: Pagination{
			Page:       page.Number,
			PageSize:   page.Size,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page.Number < totalPages,
		},
	})
}

// ListZones godoc
// @ID          listZones
// @Summary     List authorized zones
// @Description Returns the configured zones in the order they are matched.
// @Tags        Zones
// @Produce     json
// @Success     200  {object}  handlers.ZonesResponse
// @Router      /zones [get]
func (h *Handlers) ListZones(c *gin.Context) {
	ok(c, http.StatusOK, ZonesResponse{Zones: h.zones.Zones()})
}
