package txnerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_kind_predicates(t *testing.T) {
	assert.True(t, IsIllegalState(NewIllegalState("nope")))
	assert.True(t, IsTryAgain(NewTryAgain(errors.New("batch failed"))))
	assert.True(t, IsExpired(NewExpired(nil)))
	assert.True(t, IsTimedOut(NewTimedOut(nil)))
	assert.True(t, IsNetwork(NewNetwork(nil)))

	assert.False(t, IsExpired(NewIllegalState("nope")))
	assert.False(t, IsExpired(errors.New("plain")))
}

func Test_retryable(t *testing.T) {
	assert.True(t, Retryable(NewNetwork(nil)))
	assert.True(t, Retryable(NewTimedOut(nil)))
	assert.False(t, Retryable(NewExpired(nil)))
	assert.False(t, Retryable(errors.New("plain")))
}

func Test_error_message_wraps_cause(t *testing.T) {
	cause := errors.New("boom")
	err := NewTryAgain(cause)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, cause, errors.Unwrap(err))
}
