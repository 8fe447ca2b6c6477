package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-attendance-bot/internal/sysutil"
)

// HeaderUserID carries the messaging user id set by the channel adapter.
const HeaderUserID = "X-User-ID"

const ctxKeyUserID = "userID"

// Identity copies the X-User-ID header into the Gin context so rate limiting,
// event keys and logging can key on the messaging user. Webhook handlers
// still accept the id in the JSON body when the header is absent.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderUserID)); id != "" {
			c.Set(ctxKeyUserID, id)
		}
		c.Next()
	}
}

// UserID returns the user id stored by Identity, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UserFingerprint is the log-safe form of a user id; see sysutil.UserFingerprint.
func UserFingerprint(id string) string { return sysutil.UserFingerprint(id) }
