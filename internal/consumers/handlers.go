package consumers

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "teetime/internal/errors"
	"teetime/internal/logger"
	"teetime/internal/metrics"
	"teetime/internal/models"
)

// Recommitter re-drives a booking commit that failed after payment.
type Recommitter interface {
	RetryCommit(ctx context.Context, req models.CommitRequest) (*models.Booking, error)
}

type Handlers struct {
	recommitter Recommitter
}

func NewHandlers(recommitter Recommitter) *Handlers {
	return &Handlers{recommitter: recommitter}
}

// HandleBookingReconcile retries the commit of a paid booking. Transient
// failures are returned so the broker redelivers the message. Lost capacity
// cannot be fixed by retrying: the case stays open for an operator.
func (h *Handlers) HandleBookingReconcile(ctx context.Context, subject string, data []byte) error {
	var req models.CommitRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logger.WithContext(ctx).Error("Failed to unmarshal commit request", "error", err, "event_type", subject)
		metrics.EventsConsumed.WithLabelValues(subject, "malformed").Inc()
		return nil
	}

	log := logger.WithContext(ctx).With("booking_id", req.BookingID, "order_id", req.GatewayOrderID)
	log.Info("Processing booking reconcile event")

	booking, err := h.recommitter.RetryCommit(ctx, req)
	switch {
	case err == nil:
		log.Info("Booking committed after reconcile", "status", booking.Status)
		metrics.EventsConsumed.WithLabelValues(subject, "committed").Inc()
		return nil
	case errors.Is(err, apperrors.ErrSlotUnavailable), errors.Is(err, apperrors.ErrDiscountExhausted),
		errors.Is(err, apperrors.ErrIdempotencyConflict):
		log.Warn("Booking cannot be committed, leaving case for operator", "error", err)
		metrics.EventsConsumed.WithLabelValues(subject, "abandoned").Inc()
		return nil
	default:
		log.Error("Booking reconcile failed, will be redelivered", "error", err)
		metrics.EventsConsumed.WithLabelValues(subject, "retry").Inc()
		return err
	}
}

// HandleAuditEvent writes a structured log line for a domain event.
func (h *Handlers) HandleAuditEvent(ctx context.Context, subject string, data []byte) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		logger.WithContext(ctx).Error("Failed to unmarshal event", "error", err, "event_type", subject)
		metrics.EventsConsumed.WithLabelValues(subject, "malformed").Inc()
		return nil
	}

	logger.WithContext(ctx).Info("Domain event", "event_type", subject, "event", fields)
	metrics.EventsConsumed.WithLabelValues(subject, "logged").Inc()
	return nil
}
