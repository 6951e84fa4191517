package weakref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Resolve_before_release_returns_target(t *testing.T) {
	h := New(42)
	v, ok := h.Resolve()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func Test_Resolve_after_release_fails(t *testing.T) {
	h := New("x")
	h.Release()
	_, ok := h.Resolve()
	assert.False(t, ok)
}

func Test_Release_is_idempotent(t *testing.T) {
	h := New(1)
	h.Release()
	h.Release()
	_, ok := h.Resolve()
	assert.False(t, ok)
}
