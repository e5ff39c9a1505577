package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")

	id, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)

	_, ok = RequestIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestWithContextWithoutValues(t *testing.T) {
	Init("debug", "text")
	assert.NotNil(t, WithContext(context.Background()))
	assert.NotEmpty(t, NewRequestID())
}
