package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(NotFound("missing")))
	assert.Equal(t, CodeUnavailable, CodeOf(Unavailable("down", errors.New("dial refused"))))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial refused")
	err := Wrap(CodeUnavailable, "store unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "store unreachable")
}

func TestWrappedSentinelKeepsCode(t *testing.T) {
	sentinel := NotFound("profile not found")
	wrapped := fmt.Errorf("resolving principal: %w", sentinel)

	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestRetryable(t *testing.T) {
	assert.True(t, CodeUnavailable.Retryable())
	assert.False(t, CodeNotFound.Retryable())
	assert.False(t, CodeInternal.Retryable())
}
