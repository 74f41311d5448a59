package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeValidation, TypeOf(NewValidation("bad")))
	assert.Equal(t, ErrorTypeNotFound, TypeOf(NewNotFound("missing")))
	assert.Equal(t, ErrorTypeAgentBusy, TypeOf(NewAgentBusy("busy")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(nil))
}

func TestWrap_PreservesType(t *testing.T) {
	wrapped := Wrap(NewTimeout("deadline hit"), "dispatching agent")

	assert.True(t, IsTimeout(wrapped))
	assert.Contains(t, wrapped.Error(), "dispatching agent")
	assert.Contains(t, wrapped.Error(), "deadline hit")
}

func TestWrap_ForeignErrorBecomesInternal(t *testing.T) {
	cause := stderrors.New("disk full")
	wrapped := Wrap(cause, "persisting execution")

	assert.Equal(t, ErrorTypeInternal, TypeOf(wrapped))
	assert.True(t, stderrors.Is(wrapped, cause))
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "anything"))
}

func TestWrap_SurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewAccessDenied("not yours"))

	assert.True(t, IsAccessDenied(err))

	var appErr *AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, "not yours", appErr.Message)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewExternal("provider down")))
	assert.True(t, IsRetryable(NewTimeout("deadline hit")))

	assert.False(t, IsRetryable(NewValidation("bad input")))
	assert.False(t, IsRetryable(NewAccessDenied("not yours")))
	assert.False(t, IsRetryable(NewAgentBusy("already running")))
	assert.False(t, IsRetryable(NewNotFound("missing")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}
