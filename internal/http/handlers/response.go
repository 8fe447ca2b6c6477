package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-attendance-bot/internal/http/middleware"
)

// ErrorResponse is the error body of every endpoint.
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_coordinates",
//	  "message": "latitude must be within [-90, 90]"
//	}
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"e1b9be03-4999-4289-9f03-999b042d65d6"`
	// One of the ErrCode* constants
	Code string `json:"code" example:"invalid_coordinates"`
	// Safe to show to the employee
	Message string `json:"message" example:"latitude must be within [-90, 90]"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged on the
// request-scoped logger; 4xx are left to the access log.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("route", c.FullPath()).
			Msg(msg)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for the router's NoRoute and NoMethod fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }
