package response

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDecode = NewError(http.StatusUnprocessableEntity, "image decode error")

func TestWrapKeepsSentinelAndCause(t *testing.T) {
	err := Wrap(errDecode, context.DeadlineExceeded)

	assert.ErrorIs(t, err, errDecode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "image decode error: context deadline exceeded", err.Error())

	var respErr *Error
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, http.StatusUnprocessableEntity, respErr.Code)
}

func TestWrapNilCause(t *testing.T) {
	assert.Same(t, errDecode, Wrap(errDecode, nil))
}

func TestErrorIsComparesCodeAndMessage(t *testing.T) {
	same := NewError(http.StatusUnprocessableEntity, "image decode error")
	other := NewError(http.StatusBadRequest, "image decode error")

	assert.ErrorIs(t, same, errDecode)
	assert.NotErrorIs(t, other, errDecode)
}
