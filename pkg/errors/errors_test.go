package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCallerCode(t *testing.T) {
	err := Wrap(stderrors.New("boom"), ErrValidation.Code, ErrValidation.Status, "bad payload")
	require.NotNil(t, err)
	assert.Equal(t, ErrValidation.Code, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, "bad payload", err.Message)
}

func TestWrapSurfacesExpiredDeadlineAsUnavailable(t *testing.T) {
	cause := fmt.Errorf("query reports: %w", context.DeadlineExceeded)

	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "failed to list reports")

	require.NotNil(t, err)
	assert.Equal(t, ErrDatabaseUnavailable.Code, err.Code)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFromErrorPreservesTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrInvalidTransition)
	got := FromError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrInvalidTransition.Code, got.Code)
}

func TestFromErrorMapsDeadlineToUnavailable(t *testing.T) {
	got := FromError(context.DeadlineExceeded)
	require.NotNil(t, got)
	assert.Equal(t, ErrDatabaseUnavailable.Code, got.Code)
	assert.Equal(t, http.StatusServiceUnavailable, got.Status)
}
