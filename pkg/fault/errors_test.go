package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	err := NotFound("keg", "no keg with id %d", 42)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "keg not found")
	assert.Contains(t, err.Error(), "42")

	wrapped := fmt.Errorf("listing kegs: %w", err)
	assert.True(t, IsNotFound(wrapped))
}

func TestUnauthorized(t *testing.T) {
	err := Unauthorized("wrong api key")
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsNotFound(err))
}

func TestUpstream(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("directory", cause)

	assert.True(t, IsUpstream(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "directory")
}

func TestUnsupported(t *testing.T) {
	err := fmt.Errorf("finishKeg: %w", ErrUnsupported)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))
}
