package middleware

import (
	"fmt"
	"net"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/churchdesk/admin-api/pkg/errors"
)

// Recovery turns a handler panic into the standard Internal error body.
// A panic caused by the client dropping the connection is only logged,
// since nothing can be written back.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			l := RequestLogger(c)

			if brokenConnection(rec) {
				l.Warn().
					Interface("error", rec).
					Str("path", c.Request.URL.Path).
					Msg("client connection closed")
				c.Abort()
				return
			}

			l.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP()).
				Msg("Request panic recovered")

			status, body := renderError(&gin.Error{Err: errors.Internal(fmt.Errorf("panic: %v", rec))})
			body.TraceID = c.GetString(ContextRequestID)
			c.AbortWithStatusJSON(status, body)
		}()
		c.Next()
	}
}

func brokenConnection(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
