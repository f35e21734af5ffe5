package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	withCause := NewAppError("UPLOAD_NOT_FOUND", "upload abc", ErrNotFound)
	assert.Equal(t, "UPLOAD_NOT_FOUND: upload abc: resource not found", withCause.Error())

	withoutCause := NewAppError("CONFIG_ERROR", "addr is required", nil)
	assert.Equal(t, "CONFIG_ERROR: addr is required", withoutCause.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	err := NewAppError("JOB_NOT_FOUND", "job xyz", ErrNotFound)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidInput))

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "JOB_NOT_FOUND", appErr.Code)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	cause := errors.New("disk full")
	err := WrapError(cause, "store upload payload")
	require.Error(t, err)
	assert.Equal(t, "store upload payload: disk full", err.Error())
	assert.True(t, errors.Is(err, cause))
}
