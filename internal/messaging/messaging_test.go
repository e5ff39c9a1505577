package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversToSubscribers(t *testing.T) {
	bus := NewMemoryBus()

	var got []string
	require.NoError(t, bus.Subscribe("booking.confirmed", "logger", func(ctx context.Context, subject string, data []byte) error {
		var payload map[string]string
		require.NoError(t, json.Unmarshal(data, &payload))
		got = append(got, payload["booking_id"])
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), "booking.confirmed", map[string]string{"booking_id": "b-1"}))
	require.NoError(t, bus.Publish(context.Background(), "booking.cancelled", map[string]string{"booking_id": "b-2"}))

	assert.Equal(t, []string{"b-1"}, got)
	assert.Len(t, bus.Messages("booking.confirmed"), 1)
	assert.Len(t, bus.Messages("booking.cancelled"), 1)
}

func TestMemoryBusHandlerError(t *testing.T) {
	bus := NewMemoryBus()
	require.NoError(t, bus.Subscribe("s", "q", func(ctx context.Context, subject string, data []byte) error {
		return errors.New("boom")
	}))

	err := bus.Publish(context.Background(), "s", struct{}{})
	assert.Error(t, err)
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := Connect(Config{Driver: "kafka"})
	assert.Error(t, err)

	bus, err := Connect(Config{Driver: DriverNone})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBus{}, bus)
}
