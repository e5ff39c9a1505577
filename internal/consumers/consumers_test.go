package consumers

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "teetime/internal/errors"
	"teetime/internal/messaging"
	"teetime/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecommitter struct {
	mu    sync.Mutex
	calls []models.CommitRequest
	err   error
}

func (f *fakeRecommitter) RetryCommit(ctx context.Context, req models.CommitRequest) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Booking{ID: req.BookingID, Status: models.BookingConfirmed}, nil
}

func commitRequest() models.CommitRequest {
	return models.CommitRequest{
		BookingID:      "booking-1",
		HoldToken:      "hold-1",
		Slot:           models.SlotKey{CourseID: "course-1", Date: "2025-01-10", StartTime: "11:00"},
		Players:        2,
		TotalPrice:     decimal.RequireFromString("312.98"),
		Currency:       "USD",
		GatewayOrderID: "tt-order-1",
		CaptureID:      "cap-1",
		IdempotencyKey: "key-1",
	}
}

func startConsumers(t *testing.T, rc Recommitter) *messaging.MemoryBus {
	t.Helper()
	bus := messaging.NewMemoryBus()
	require.NoError(t, NewConsumerService(bus, rc).Start())
	return bus
}

func TestReconcileEventRetriesCommit(t *testing.T) {
	rc := &fakeRecommitter{}
	bus := startConsumers(t, rc)

	require.NoError(t, bus.Publish(context.Background(), models.EventBookingReconcile, commitRequest()))

	require.Len(t, rc.calls, 1)
	assert.Equal(t, "booking-1", rc.calls[0].BookingID)
	assert.Equal(t, "hold-1", rc.calls[0].HoldToken)
	assert.True(t, decimal.RequireFromString("312.98").Equal(rc.calls[0].TotalPrice))
}

func TestReconcileEventTransientFailureIsRedelivered(t *testing.T) {
	rc := &fakeRecommitter{err: errors.New("connection reset")}
	bus := startConsumers(t, rc)

	err := bus.Publish(context.Background(), models.EventBookingReconcile, commitRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestReconcileEventLostCapacityIsAcked(t *testing.T) {
	for _, cause := range []error{apperrors.ErrSlotUnavailable, apperrors.ErrDiscountExhausted, apperrors.ErrIdempotencyConflict} {
		rc := &fakeRecommitter{err: cause}
		bus := startConsumers(t, rc)

		assert.NoError(t, bus.Publish(context.Background(), models.EventBookingReconcile, commitRequest()))
		assert.Len(t, rc.calls, 1)
	}
}

func TestMalformedEventsAreAcked(t *testing.T) {
	rc := &fakeRecommitter{}
	h := NewHandlers(rc)

	assert.NoError(t, h.HandleBookingReconcile(context.Background(), models.EventBookingReconcile, []byte("{not json")))
	assert.NoError(t, h.HandleAuditEvent(context.Background(), models.EventBookingConfirmed, []byte("[1,")))
	assert.Empty(t, rc.calls)
}

func TestAuditSubjectsAreConsumed(t *testing.T) {
	rc := &fakeRecommitter{}
	bus := startConsumers(t, rc)

	for _, subject := range auditSubjects {
		assert.NoError(t, bus.Publish(context.Background(), subject, models.HoldsExpiredEvent{Released: 1}), subject)
	}
	assert.Empty(t, rc.calls)
}
