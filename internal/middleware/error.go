package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/churchdesk/admin-api/pkg/errors"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler renders the last error attached with c.Error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		traceID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			RequestLogger(c).Error().
				Err(e.Err).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		status, body := renderError(c.Errors.Last())
		body.TraceID = traceID
		c.JSON(status, body)
	}
}

func renderError(e *gin.Error) (int, ErrorResponse) {
	var appErr *errors.AppError
	if errors.As(e.Err, &appErr) {
		return appErr.StatusCode(), ErrorResponse{
			Error: appErr.Message,
			Code:  string(appErr.Code),
		}
	}

	if e.IsType(gin.ErrorTypeBind) {
		return http.StatusBadRequest, ErrorResponse{
			Error: e.Err.Error(),
			Code:  string(errors.ErrInvalidRequest),
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: "internal server error",
		Code:  string(errors.ErrInternal),
	}
}
