package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = "request_id"
	ContextLogger    = "request_logger"

	maxRequestIDLen = 64
)

// RequestID tags every request with an id, echoed in X-Request-ID and
// used as trace_id in error bodies. A caller-supplied id is kept only
// when it is short and made of URL-safe characters.
//
// The request context carries a zerolog logger with the id attached,
// so zerolog.Ctx(ctx) in services logs it too.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if !validRequestID(rid) {
			rid = uuid.New().String()
		}

		reqLog := log.With().Str(ContextRequestID, rid).Logger()
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))

		c.Set(ContextRequestID, rid)
		c.Set(ContextLogger, &reqLog)
		c.Header(HeaderXRequestID, rid)
		c.Next()
	}
}

// RequestLogger returns the logger RequestID attached to c, or the
// global logger when the middleware did not run.
func RequestLogger(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ContextLogger); ok {
		if l, ok := v.(*zerolog.Logger); ok {
			return l
		}
	}
	return &log.Logger
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}
