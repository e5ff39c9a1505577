package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"teetime/internal/clock"
	"teetime/internal/commission"
	apperrors "teetime/internal/errors"
	"teetime/internal/idempotency"
	"teetime/internal/logger"
	"teetime/internal/messaging"
	"teetime/internal/metrics"
	"teetime/internal/models"
	"teetime/internal/payment"

	"github.com/shopspring/decimal"
)

// RefundInput is an operator's refund instruction. Amount nil refunds the full price.
type RefundInput struct {
	Confirm bool
	Amount  *decimal.Decimal
	Reason  string
}

type BookingServiceDeps struct {
	Bookings        BookingStore
	Payments        PaymentStore
	Reconciliations ReconciliationStore
	Ledger          EventLedger
	Commissions     *commission.Attributor
	Gateway         payment.Gateway
	Locker          idempotency.Locker
	Tx              TxRunner
	Publisher       messaging.Publisher
	Clock           clock.Clock
}

// BookingService owns the booking lifecycle after creation: reads,
// cancellation, refunds and payment webhooks.
type BookingService struct {
	BookingServiceDeps
}

func NewBookingService(deps BookingServiceDeps) *BookingService {
	return &BookingService{BookingServiceDeps: deps}
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperrors.ErrBookingNotFound
	}
	return booking, nil
}

// Cancel moves a pending or confirmed booking to cancelled. Cancelling twice is a no-op.
func (s *BookingService) Cancel(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed, err := s.transition(ctx, booking, models.BookingCancelled, "cancelled by customer",
		models.BookingPending, models.BookingConfirmed)
	if err != nil {
		return nil, err
	}
	if !changed && booking.Status != models.BookingCancelled {
		return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, booking.Status, models.BookingCancelled)
	}
	return s.Get(ctx, id)
}

// Refund returns the captured money through the gateway. It requires explicit
// operator confirmation and is a no-op for an already refunded booking.
func (s *BookingService) Refund(ctx context.Context, id string, in RefundInput) (*models.Booking, error) {
	if !in.Confirm {
		return nil, apperrors.ErrRefundNotConfirmed
	}
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingRefunded {
		return booking, nil
	}
	if booking.Status != models.BookingConfirmed && booking.Status != models.BookingCancelled {
		return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, booking.Status, models.BookingRefunded)
	}
	if in.Amount != nil && (!in.Amount.IsPositive() || in.Amount.GreaterThan(booking.TotalPrice)) {
		return nil, apperrors.Validation("amount", "must be positive and at most the booking total")
	}

	log := logger.WithContext(ctx).With("booking_id", booking.ID, "order_id", booking.GatewayOrderID)

	result, err := s.Gateway.Refund(ctx, payment.RefundRequest{
		CaptureID: booking.PaymentRef,
		OrderID:   booking.GatewayOrderID,
		Amount:    in.Amount,
		Reason:    in.Reason,
	})
	if err != nil {
		if payment.IsTimeout(err) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrGatewayTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrGatewayUnavailable, err)
	}
	log.Info("Refund accepted by gateway", "refund_id", result.RefundID, "status", result.Status)

	if _, err := s.Payments.UpdateStatus(ctx, booking.GatewayOrderID, models.PaymentRefunded, models.PaymentSucceeded); err != nil {
		return nil, err
	}
	reason := in.Reason
	if reason == "" {
		reason = "refunded by operator"
	}
	if _, err := s.transition(ctx, booking, models.BookingRefunded, reason,
		models.BookingConfirmed, models.BookingCancelled); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// transition applies a guarded status change, voids the commission and
// publishes the status event when the change took effect.
func (s *BookingService) transition(ctx context.Context, booking *models.Booking, to models.BookingStatus, reason string, from ...models.BookingStatus) (bool, error) {
	changed, err := s.Bookings.UpdateStatus(ctx, booking.ID, to, from...)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	if !changed {
		return false, nil
	}

	if to == models.BookingCancelled || to == models.BookingRefunded {
		if _, err := s.Commissions.Cancel(ctx, booking.ID); err != nil {
			return false, err
		}
	}

	logger.WithContext(ctx).Info("Booking status changed", "booking_id", booking.ID, "from", booking.Status, "to", to, "reason", reason)
	publish(ctx, s.Publisher, subjectForStatus(to), models.BookingStatusEvent{
		BookingID: booking.ID,
		From:      booking.Status,
		To:        to,
		Reason:    reason,
		Timestamp: s.Clock.Now(),
	})
	return true, nil
}

func subjectForStatus(to models.BookingStatus) string {
	switch to {
	case models.BookingCancelled:
		return models.EventBookingCancelled
	case models.BookingRefunded:
		return models.EventBookingRefunded
	default:
		return models.EventBookingConfirmed
	}
}

// ApplyPaymentEvent applies a decoded webhook. Each event id is applied at
// most once; replays return false without touching state.
func (s *BookingService) ApplyPaymentEvent(ctx context.Context, ev payment.Event) (applied bool, err error) {
	defer func() {
		if err == nil {
			metrics.WebhookEvents.WithLabelValues(ev.Provider, string(ev.Type), strconv.FormatBool(applied)).Inc()
		}
	}()

	log := logger.WithContext(ctx).With("event_id", ev.ID, "event_type", ev.Type, "provider", ev.Provider)

	orderID, err := s.orderFor(ctx, ev)
	if err != nil {
		return false, err
	}
	log = log.With("order_id", orderID)

	// The booking attempt for this order may still be in flight; wait for it
	// to settle rather than racing its commit.
	if record, err := s.Payments.GetByOrderID(ctx, orderID); err != nil {
		return false, fmt.Errorf("failed to get payment record: %w", err)
	} else if record != nil && record.IdempotencyKey != "" {
		release, err := s.Locker.Acquire(ctx, record.IdempotencyKey)
		if err != nil {
			return false, err
		}
		defer release()
	}

	err = s.Tx.WithTx(ctx, func(ctx context.Context) error {
		first, err := s.Ledger.MarkProcessed(ctx, ev.ID, ev.Provider, string(ev.Type))
		if err != nil {
			return fmt.Errorf("failed to record payment event: %w", err)
		}
		if !first {
			log.Debug("Payment event already processed")
			return nil
		}
		applied = true
		return s.apply(ctx, log, ev, orderID)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// orderFor finds the gateway order an event belongs to, falling back to the capture id.
func (s *BookingService) orderFor(ctx context.Context, ev payment.Event) (string, error) {
	if ev.OrderID != "" {
		return ev.OrderID, nil
	}
	record, err := s.Payments.GetByCaptureID(ctx, ev.ResourceID)
	if err != nil {
		return "", fmt.Errorf("failed to get payment record by capture: %w", err)
	}
	if record == nil {
		return ev.ResourceID, nil
	}
	return record.GatewayOrderID, nil
}

func (s *BookingService) apply(ctx context.Context, log *slog.Logger, ev payment.Event, orderID string) error {
	booking, err := s.Bookings.GetByGatewayOrderID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to get booking for order: %w", err)
	}

	switch ev.Type {
	case payment.EventCaptured:
		if _, err := s.Payments.UpdateStatus(ctx, orderID, models.PaymentSucceeded, models.PaymentPending, models.PaymentFailed); err != nil {
			return err
		}
		if booking == nil {
			log.Warn("Payment captured without a booking, opening reconciliation")
			return s.openCase(ctx, orderID, models.ReasonCapturedWithoutBooking, ev)
		}
		_, err := s.transition(ctx, booking, models.BookingConfirmed, "payment captured", models.BookingPending)
		return err

	case payment.EventDenied:
		if _, err := s.Payments.UpdateStatus(ctx, orderID, models.PaymentFailed, models.PaymentPending, models.PaymentSucceeded); err != nil {
			return err
		}
		if booking == nil {
			return nil
		}
		_, err := s.transition(ctx, booking, models.BookingCancelled, "payment denied", models.BookingPending, models.BookingConfirmed)
		return err

	case payment.EventRefunded:
		if _, err := s.Payments.UpdateStatus(ctx, orderID, models.PaymentRefunded, models.PaymentSucceeded, models.PaymentPending); err != nil {
			return err
		}
		if booking == nil {
			return nil
		}
		_, err := s.transition(ctx, booking, models.BookingRefunded, "payment refunded", models.BookingConfirmed, models.BookingCancelled, models.BookingPending)
		return err

	case payment.EventOrderApproved:
		record, err := s.Payments.GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if record != nil && record.Status == models.PaymentPending && record.CaptureID == "" {
			return s.Payments.RecordCapture(ctx, orderID, ev.ResourceID, models.PaymentPending)
		}
		return nil

	default:
		log.Info("Ignoring payment event")
		return nil
	}
}

func (s *BookingService) openCase(ctx context.Context, orderID, reason string, ev payment.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode payment event: %w", err)
	}
	rc := &models.Reconciliation{
		GatewayOrderID: orderID,
		Reason:         reason,
		Payload:        payload,
	}
	if err := s.Reconciliations.Open(ctx, rc); err != nil {
		return err
	}
	metrics.ReconciliationsOpened.WithLabelValues(reason).Inc()
	publish(ctx, s.Publisher, models.EventReconciliationOpened, models.ReconciliationOpenedEvent{
		ReconciliationID: rc.ID,
		GatewayOrderID:   orderID,
		Reason:           reason,
		Timestamp:        s.Clock.Now(),
	})
	return nil
}

// IsWebhookRejection reports decoding failures that the caller should answer with 4xx.
func IsWebhookRejection(err error) bool {
	return errors.Is(err, payment.ErrInvalidSignature) ||
		errors.Is(err, payment.ErrMalformedEnvelope) ||
		errors.Is(err, payment.ErrUnsupportedEvent)
}
