// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements event-key handling for messaging webhooks. Channels
// redeliver an event when our reply is slow; the event carries a stable key
// (Idempotency-Key or X-Event-ID header). EventKey validates the key, stashes
// it for handlers, and, given a receipt lookup, marks known redeliveries so
// the rate limiter lets them through and handlers can replay the stored reply.
//
// Handlers stay in control of replay: this middleware never writes a cached
// payload itself.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderIdempotencyKey is the generic retry key header.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderEventID is the channel's delivery id header. It is used when
	// Idempotency-Key is absent.
	HeaderEventID = "X-Event-ID"
)

const (
	ctxKeyEventKey   = "event.key"
	ctxKeyReplay     = "event.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// EventKeyFrom returns the validated event key, if any.
func EventKeyFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyEventKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether EventKey found a stored receipt for this request.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// EventKeyOptions configures key validation.
type EventKeyOptions struct {
	// MaxLen caps the key length. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Defaults to ^[A-Za-z0-9._~\-:]+$
	Pattern *regexp.Regexp
}

// ReceiptLookup reports whether a live receipt exists for (userID, key).
// Errors are treated as "not found" so lookups never block processing.
type ReceiptLookup func(ctx context.Context, userID, key string, now time.Time) (bool, error)

// EventKey validates and stashes the request's event key.
//
//   - No key: no-op.
//   - Invalid key: 400 {"code":"bad_event_key"}.
//   - Known key for the request's user: replay and rate-bypass flags are set.
func EventKey(opts EventKeyOptions, lookup ReceiptLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			key = strings.TrimSpace(c.GetHeader(HeaderEventID))
		}
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_event_key",
				"message": "invalid event key",
			})
			return
		}
		c.Set(ctxKeyEventKey, key)

		if uid := UserID(c); lookup != nil && uid != "" {
			if exists, err := lookup(c.Request.Context(), uid, key, time.Now().UTC()); err == nil && exists {
				c.Set(ctxKeyReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
