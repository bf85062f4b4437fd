package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorCodeSeesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("verify: %w", NewNotFoundError("tip", "t1"))
	assert.True(t, IsErrorCode(err, ErrNotFound))
	assert.False(t, IsErrorCode(err, ErrValidation))
	assert.Equal(t, ErrNotFound, ErrorCode(err))
	assert.Equal(t, "", ErrorCode(errors.New("plain")))
}

func TestAsStoreError(t *testing.T) {
	assert.NoError(t, AsStoreError("op", nil))

	classified := AsStoreError("update tip", errors.New("connection reset"))
	assert.True(t, IsErrorCode(classified, ErrStoreUnavailable))
	assert.Contains(t, classified.Error(), "connection reset")

	notFound := NewNotFoundError("tip", "t1")
	assert.Same(t, notFound, AsStoreError("get tip", notFound))
}

func TestAppErrorToHTTPStatus(t *testing.T) {
	assert.Equal(t, 404, AppErrorToHTTPStatus(ErrNotFound))
	assert.Equal(t, 422, AppErrorToHTTPStatus(ErrInvalidTransition))
	assert.Equal(t, 503, AppErrorToHTTPStatus(ErrStoreUnavailable))
	assert.Equal(t, 409, AppErrorToHTTPStatus(ErrConflict))
	assert.Equal(t, 500, AppErrorToHTTPStatus("SOMETHING_ELSE"))
}
