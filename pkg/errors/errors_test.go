package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{InvalidRequest("title is required"), http.StatusBadRequest},
		{InvalidAudience("unknown audience type"), http.StatusBadRequest},
		{NoRecipients(), http.StatusUnprocessableEntity},
		{StoreUnavailable("resolve", fmt.Errorf("connection refused")), http.StatusServiceUnavailable},
		{NotFound("message", nil), http.StatusNotFound},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.StatusCode())
		})
	}
}

func TestCodeOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", InvalidAudience("group_id is required"))

	assert.Equal(t, ErrInvalidAudience, CodeOf(err))
	assert.True(t, Is(err, ErrInvalidAudience))
	assert.False(t, Is(err, ErrNoRecipients))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("plain")))
	assert.False(t, Is(nil, ErrInternal))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := StoreUnavailable("create message", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "store unavailable during create message: dial tcp: refused", err.Error())
}
