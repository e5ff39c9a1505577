package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "teetime/internal/errors"
	"teetime/internal/models"
	"teetime/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookingEndToEnd(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	ctx := context.Background()

	in := bookingInput("key-e2e")
	in.DiscountCode = "save10"
	in.AffiliateCode = "FAIRWAY"

	resp, err := h.svc.Coordinator.CreateBooking(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, BookingIDFor("key-e2e"), resp.BookingID)
	assert.Equal(t, models.BookingConfirmed, resp.Status)
	assert.Equal(t, "312.98", resp.TotalPrice.StringFixed(2))
	assert.Equal(t, "USD", resp.Currency)
	assert.NotEmpty(t, resp.PaymentCaptureID)

	capacity, held := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 0, held)

	assert.Equal(t, 1, h.discounts.Uses("SAVE10"))
	assert.Equal(t, 0, h.discounts.Reserved("SAVE10"))

	cm, ok := h.commissions.Get(resp.BookingID)
	require.True(t, ok)
	assert.Equal(t, "31.30", cm.Amount.StringFixed(2))
	assert.Equal(t, models.CommissionPending, cm.Status)

	require.Len(t, h.gateway.Captures, 1)
	assert.Equal(t, "312.98", h.gateway.Captures[0].Amount.StringFixed(2))
	assert.Equal(t, payment.OrderIDFor("key-e2e"), h.gateway.Captures[0].OrderID)

	record, err := h.payments.GetByOrderID(ctx, payment.OrderIDFor("key-e2e"))
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, models.PaymentSucceeded, record.Status)
	require.NotNil(t, record.BookingID)
	assert.Equal(t, resp.BookingID, *record.BookingID)

	assert.Len(t, h.bus.Messages(models.EventBookingConfirmed), 1)
	assert.Len(t, h.bus.Messages(models.EventCommissionCreated), 1)
	assert.Len(t, h.bus.Messages(models.EventPaymentCaptured), 1)
}

func TestCreateBookingWithoutExtras(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})

	resp, err := h.svc.Coordinator.CreateBooking(context.Background(), bookingInput("key-plain"))
	require.NoError(t, err)
	assert.Equal(t, "347.76", resp.TotalPrice.StringFixed(2))
	assert.Equal(t, 0, h.commissions.Len())
}

func TestCreateBookingFixedDiscount(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})

	in := bookingInput("key-fifty")
	in.DiscountCode = "FIFTY"
	resp, err := h.svc.Coordinator.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "297.76", resp.TotalPrice.StringFixed(2))
}

func TestCreateBookingIsIdempotent(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	ctx := context.Background()

	first, err := h.svc.Coordinator.CreateBooking(ctx, bookingInput("key-repeat"))
	require.NoError(t, err)
	second, err := h.svc.Coordinator.CreateBooking(ctx, bookingInput("key-repeat"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.gateway.CaptureCount())
	assert.Equal(t, 1, h.bookings.Len())

	capacity, _ := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 2, capacity)

	changed := bookingInput("key-repeat")
	changed.Players = 1
	_, err = h.svc.Coordinator.CreateBooking(ctx, changed)
	assert.ErrorIs(t, err, apperrors.ErrIdempotencyConflict)
}

func TestCreateBookingRejectsInFlightDuplicate(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})

	release, err := h.locker.Acquire(context.Background(), "key-busy")
	require.NoError(t, err)
	defer release()

	_, err = h.svc.Coordinator.CreateBooking(context.Background(), bookingInput("key-busy"))
	assert.ErrorIs(t, err, apperrors.ErrIdempotencyInFlight)
	assert.Equal(t, 0, h.gateway.CaptureCount())
}

func TestCreateBookingPaymentDeclined(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	h.gateway.Result = payment.CaptureResult{Status: payment.CaptureFailed, Reason: "insufficient funds"}

	in := bookingInput("key-declined")
	in.DiscountCode = "SAVE10"
	_, err := h.svc.Coordinator.CreateBooking(context.Background(), in)
	require.ErrorIs(t, err, apperrors.ErrPaymentDeclined)

	capacity, held := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 4, capacity)
	assert.Equal(t, 0, held)
	assert.Equal(t, 0, h.bookings.Len())
	assert.Equal(t, 0, h.discounts.Uses("SAVE10"))
	assert.Equal(t, 0, h.discounts.Reserved("SAVE10"))
	assert.Len(t, h.bus.Messages(models.EventPaymentFailed), 1)

	record, err := h.payments.GetByOrderID(context.Background(), payment.OrderIDFor("key-declined"))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, record.Status)
}

func TestCreateBookingPaymentPending(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	h.gateway.Result = payment.CaptureResult{Status: payment.CapturePending}

	_, err := h.svc.Coordinator.CreateBooking(context.Background(), bookingInput("key-pending"))
	require.ErrorIs(t, err, apperrors.ErrPaymentPending)

	_, held := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 0, held)
	assert.Equal(t, 0, h.bookings.Len())
}

func TestCreateBookingGatewayTimeoutIsRetryable(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{PaymentTimeout: 10 * time.Millisecond})
	h.gateway.Delay = 200 * time.Millisecond
	ctx := context.Background()

	_, err := h.svc.Coordinator.CreateBooking(ctx, bookingInput("key-timeout"))
	require.ErrorIs(t, err, apperrors.ErrGatewayTimeout)
	assert.True(t, apperrors.Describe(err).Retryable)

	_, held := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 0, held)

	h.gateway.Delay = 0
	resp, err := h.svc.Coordinator.CreateBooking(ctx, bookingInput("key-timeout"))
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, resp.Status)

	require.Len(t, h.gateway.Captures, 2)
	assert.Equal(t, h.gateway.Captures[0].OrderID, h.gateway.Captures[1].OrderID)
	assert.Equal(t, h.gateway.Captures[0].IdempotencyKey, h.gateway.Captures[1].IdempotencyKey)
}

func TestCreateBookingGatewayUnavailable(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	h.gateway.Err = fmt.Errorf("%w: 502", payment.ErrUnavailable)

	_, err := h.svc.Coordinator.CreateBooking(context.Background(), bookingInput("key-502"))
	require.ErrorIs(t, err, apperrors.ErrGatewayUnavailable)

	_, held := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 0, held)
}

func TestCreateBookingSlotUnavailable(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})

	in := bookingInput("key-too-many")
	in.Players = 5
	_, err := h.svc.Coordinator.CreateBooking(context.Background(), in)
	require.ErrorIs(t, err, apperrors.ErrSlotUnavailable)
	assert.Equal(t, 0, h.gateway.CaptureCount())
}

func TestCreateBookingDiscountErrorsReleaseHold(t *testing.T) {
	cases := map[string]error{
		"OLD":     apperrors.ErrDiscountExpired,
		"NOSUCH":  apperrors.ErrDiscountNotFound,
		"  old  ": apperrors.ErrDiscountExpired,
	}
	for code, want := range cases {
		t.Run(code, func(t *testing.T) {
			h := newHarness(t, CoordinatorConfig{})
			in := bookingInput("key-discount")
			in.DiscountCode = code

			_, err := h.svc.Coordinator.CreateBooking(context.Background(), in)
			require.ErrorIs(t, err, want)

			_, held := h.inventory.Snapshot(testSlot)
			assert.Equal(t, 0, held)
			assert.Equal(t, 0, h.gateway.CaptureCount())
		})
	}
}

func TestCreateBookingUnknownAffiliateHasNoSideEffects(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})

	in := bookingInput("key-aff")
	in.AffiliateCode = "NOBODY"
	_, err := h.svc.Coordinator.CreateBooking(context.Background(), in)
	require.ErrorIs(t, err, apperrors.ErrAffiliateNotFound)

	_, held := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 0, held)
	assert.Equal(t, 0, h.gateway.CaptureCount())
}

func TestCreateBookingValidation(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})

	cases := map[string]func(in *CreateBookingInput){
		"missing key":     func(in *CreateBookingInput) { in.IdempotencyKey = "" },
		"zero players":    func(in *CreateBookingInput) { in.Players = 0 },
		"bad date":        func(in *CreateBookingInput) { in.Date = "10.01.2025" },
		"bad time":        func(in *CreateBookingInput) { in.Time = "11am" },
		"missing payment": func(in *CreateBookingInput) { in.PaymentMethodRef = "" },
		"no course":       func(in *CreateBookingInput) { in.CourseID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := bookingInput("key-validation")
			mutate(&in)
			_, err := h.svc.Coordinator.CreateBooking(context.Background(), in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	in := bookingInput("key-unknown-course")
	in.CourseID = "nope"
	_, err := h.svc.Coordinator.CreateBooking(context.Background(), in)
	assert.ErrorIs(t, err, apperrors.ErrCourseNotFound)
}

func TestCreateBookingConcurrentSingleSeat(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	h.inventory.Seed(testSlot, 1)

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := bookingInput(fmt.Sprintf("key-race-%d", i))
			in.Players = 1
			_, err := h.svc.Coordinator.CreateBooking(context.Background(), in)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, unavailable int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperrors.ErrSlotUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, callers-1, unavailable)

	capacity, held := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 0, capacity)
	assert.Equal(t, 0, held)
}

func TestCreateBookingCommitFailureEscalates(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{CommitMaxAttempts: 3})
	h.bookings.FailCreate = 3
	ctx := context.Background()

	in := bookingInput("key-commit")
	in.AffiliateCode = "FAIRWAY"
	_, err := h.svc.Coordinator.CreateBooking(ctx, in)
	require.ErrorIs(t, err, apperrors.ErrCommitFailure)
	assert.Equal(t, "internal_error", apperrors.Describe(err).Code)

	assert.Empty(t, h.gateway.Refunds)

	cases, err := h.recs.List(ctx, models.ReconciliationOpen, 10)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, models.ReasonCommitFailed, cases[0].Reason)
	assert.Equal(t, payment.OrderIDFor("key-commit"), cases[0].GatewayOrderID)

	msgs := h.bus.Messages(models.EventBookingReconcile)
	require.Len(t, msgs, 1)
	assert.Len(t, h.bus.Messages(models.EventReconciliationOpened), 1)

	var req models.CommitRequest
	require.NoError(t, json.Unmarshal(msgs[0].Data, &req))

	booking, err := h.svc.Coordinator.RetryCommit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, booking.Status)
	assert.Equal(t, "347.76", booking.TotalPrice.StringFixed(2))

	_, ok := h.commissions.Get(booking.ID)
	assert.True(t, ok)

	open, err := h.recs.List(ctx, models.ReconciliationOpen, 10)
	require.NoError(t, err)
	assert.Empty(t, open)

	// A second re-drive is harmless.
	_, err = h.svc.Coordinator.RetryCommit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, h.bookings.Len())
	assert.Equal(t, 1, h.commissions.Len())
	capacity, _ := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 2, capacity)
}

func TestCreateBookingReusesEarlierCapture(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{CommitMaxAttempts: 1})
	h.bookings.FailCreate = 1
	ctx := context.Background()

	_, err := h.svc.Coordinator.CreateBooking(ctx, bookingInput("key-reuse"))
	require.ErrorIs(t, err, apperrors.ErrCommitFailure)

	resp, err := h.svc.Coordinator.CreateBooking(ctx, bookingInput("key-reuse"))
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, resp.Status)
	assert.Equal(t, 1, h.gateway.CaptureCount())

	// The case opened by the failed attempt is closed by the successful retry.
	open, err := h.recs.List(ctx, models.ReconciliationOpen, 10)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestReconcilerAfterCustomerRetryReleasesStaleHold(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{CommitMaxAttempts: 1})
	h.bookings.FailCreate = 1
	ctx := context.Background()

	in := bookingInput("key-stale")
	in.DiscountCode = "SAVE10"
	_, err := h.svc.Coordinator.CreateBooking(ctx, in)
	require.ErrorIs(t, err, apperrors.ErrCommitFailure)

	msgs := h.bus.Messages(models.EventBookingReconcile)
	require.Len(t, msgs, 1)
	var stale models.CommitRequest
	require.NoError(t, json.Unmarshal(msgs[0].Data, &stale))

	resp, err := h.svc.Coordinator.CreateBooking(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 1, h.gateway.CaptureCount())

	// The customer retry committed under a new hold; the first hold is still
	// outstanding until the reconciler sees the booking exists.
	capacity, held := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 2, held)

	booking, err := h.svc.Coordinator.RetryCommit(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, resp.BookingID, booking.ID)

	capacity, held = h.inventory.Snapshot(testSlot)
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 0, held)
	assert.Equal(t, 1, h.bookings.Len())
	assert.Equal(t, 1, h.discounts.Uses("SAVE10"))
	assert.Equal(t, 0, h.discounts.Reserved("SAVE10"))
	assert.Len(t, h.bus.Messages(models.EventBookingConfirmed), 1)

	open, err := h.recs.List(ctx, models.ReconciliationOpen, 10)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRetryCommitWaitsForInFlightAttempt(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})

	release, err := h.locker.Acquire(context.Background(), "key-busy")
	require.NoError(t, err)
	defer release()

	req := models.CommitRequest{BookingID: BookingIDFor("key-busy"), HoldToken: "hold-x", Slot: testSlot, Players: 2, IdempotencyKey: "key-busy"}
	_, err = h.svc.Coordinator.RetryCommit(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrIdempotencyInFlight)
	assert.Equal(t, 0, h.bookings.Len())
}

func TestCreateBookingConcurrentDiscountNeverExceedsCap(t *testing.T) {
	h := newHarness(t, CoordinatorConfig{})
	h.inventory.Seed(testSlot, 20)
	h.gateway.Delay = 50 * time.Millisecond

	const callers = 7
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := bookingInput(fmt.Sprintf("key-code-%d", i))
			in.Players = 1
			in.DiscountCode = "SAVE10"
			_, err := h.svc.Coordinator.CreateBooking(context.Background(), in)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var ok, exhausted int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperrors.ErrDiscountExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 5, ok)
	assert.Equal(t, 2, exhausted)
	assert.Equal(t, 5, h.discounts.Uses("SAVE10"))
	assert.Equal(t, 0, h.discounts.Reserved("SAVE10"))
	assert.Equal(t, 5, h.bookings.Len())
	assert.Equal(t, 5, h.gateway.CaptureCount())

	_, held := h.inventory.Snapshot(testSlot)
	assert.Equal(t, 0, held)
}

func TestFingerprintIgnoresCodeCase(t *testing.T) {
	a := bookingInput("k").CreateBookingRequest
	b := a
	a.DiscountCode = "save10"
	b.DiscountCode = " SAVE10 "
	assert.Equal(t, Fingerprint("c", a), Fingerprint("c", b))

	b.Players = 3
	assert.NotEqual(t, Fingerprint("c", a), Fingerprint("c", b))
}
