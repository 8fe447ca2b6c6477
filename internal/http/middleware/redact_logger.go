package middleware

// RedactingLogger is the access log. Messaging user ids are phone numbers, so
// anything user-controlled (unmatched paths, query strings, header values) is
// scrubbed before it is written, and the user is logged only as a
// fingerprint. Bodies are never logged; they carry coordinates.

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so hex runs inside UUIDs never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// builtinMasked headers are always replaced with "[REDACTED]".
var builtinMasked = []string{"authorization", "cookie", "set-cookie", "x-user-id"}

// RedactOptions adds header names (case-insensitive) to the built-in mask set.
type RedactOptions struct {
	MaskHeaders []string
}

// Redact replaces UUIDs, emails and phone numbers in s. UUIDs go first so
// the looser phone pattern never eats their digit groups.
func Redact(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger writes one line per request: info for 2xx/3xx, warn for
// 4xx, error for 5xx.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(builtinMasked)+len(opts.MaskHeaders))
	for _, h := range append(builtinMasked, opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		// Route templates are safe; a raw path may embed a user id.
		path := c.FullPath()
		if path == "" {
			path = Redact(c.Request.URL.Path)
		}
		query := truncate(Redact(c.Request.URL.RawQuery), maxQueryLogLength)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = Redact(strings.Join(vv, ", "))
		}

		c.Next()

		status := c.Writer.Status()
		reqID := c.Writer.Header().Get(requestIDHeader)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}

		_, hasKey := EventKeyFrom(c)
		ev.
			Str("request_id", reqID).
			Str("user", UserFingerprint(UserID(c))).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Bool("event_key", hasKey).
			Bool("replayed", c.Writer.Header().Get("Event-Replayed") == "true").
			Interface("headers", headers).
			Msg("http_request")
	}
}
