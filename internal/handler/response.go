package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/churchdesk/admin-api/pkg/errors"
)

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

func NewMessageResponse(message string) *Response {
	return &Response{
		Success: true,
		Message: message,
	}
}

// UUIDParam parses a path parameter as a UUID.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errors.InvalidRequest("invalid " + name)
	}
	return id, nil
}

// IntQuery reads an optional integer query parameter; absent yields 0.
func IntQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.InvalidRequest(name + " must be an integer")
	}
	return n, nil
}
