package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionUnavailableIsRetryable(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("load session: %w", SessionUnavailable(base))

	assert.True(t, IsRetryable(err))
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
	assert.ErrorIs(t, err, base)
}

func TestBadRequestIsNotRetryable(t *testing.T) {
	err := BadRequest("session_id is required")

	assert.False(t, IsRetryable(err))
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.Contains(t, err.Error(), "session_id is required")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))
	assert.NoError(t, WrapSQL(nil))
	assert.NoError(t, SessionUnavailable(nil))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("plain")))
}
