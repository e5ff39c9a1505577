package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"teetime/internal/clock"
	"teetime/internal/commission"
	"teetime/internal/discount"
	apperrors "teetime/internal/errors"
	"teetime/internal/idempotency"
	"teetime/internal/inventory"
	"teetime/internal/logger"
	"teetime/internal/messaging"
	"teetime/internal/metrics"
	"teetime/internal/models"
	"teetime/internal/payment"
	"teetime/internal/pricing"
	"teetime/internal/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var bookingNamespace = uuid.MustParse("b3e0f6a2-41c9-4d1e-8a57-0c9d2f7e6a13")

// BookingIDFor derives the booking id from an idempotency key.
func BookingIDFor(idempotencyKey string) string {
	return uuid.NewSHA1(bookingNamespace, []byte(idempotencyKey)).String()
}

// CreateBookingInput is a create-booking request plus the caller's idempotency key.
type CreateBookingInput struct {
	models.CreateBookingRequest
	IdempotencyKey string
}

type CoordinatorConfig struct {
	HoldTTL           time.Duration
	PaymentTimeout    time.Duration
	CommitMaxAttempts int
	CommitBackoff     time.Duration
}

type CoordinatorDeps struct {
	Courses         *CourseService
	Calculator      *pricing.Calculator
	Discounts       *discount.Resolver
	DiscountStore   DiscountStore
	Commissions     *commission.Attributor
	Inventory       inventory.Inventory
	Affiliates      AffiliateStore
	Bookings        BookingStore
	Payments        PaymentStore
	Reconciliations ReconciliationStore
	Gateway         payment.Gateway
	Locker          idempotency.Locker
	Tx              TxRunner
	Publisher       messaging.Publisher
	Clock           clock.Clock
}

// Coordinator drives one booking attempt through
// Quoted -> Held -> DiscountApplied -> PaymentCaptured -> Committed.
// Every failure before capture releases the hold and any discount use reserved
// for it. Failures after capture are retried and then escalated to
// reconciliation; money is never refunded automatically.
type Coordinator struct {
	CoordinatorDeps
	cfg CoordinatorConfig
}

func NewCoordinator(deps CoordinatorDeps, cfg CoordinatorConfig) *Coordinator {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = inventory.DefaultHoldTTL
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 15 * time.Second
	}
	if cfg.CommitMaxAttempts <= 0 {
		cfg.CommitMaxAttempts = 5
	}
	if cfg.CommitBackoff <= 0 {
		cfg.CommitBackoff = 200 * time.Millisecond
	}
	return &Coordinator{CoordinatorDeps: deps, cfg: cfg}
}

// Fingerprint identifies the request payload behind an idempotency key.
func Fingerprint(courseID string, req models.CreateBookingRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s|%s|%s",
		courseID,
		req.Date,
		req.Time,
		req.Players,
		discount.Normalize(req.DiscountCode),
		strings.TrimSpace(req.AffiliateCode),
		req.PaymentMethodRef,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func validateInput(in CreateBookingInput) error {
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return apperrors.Validation("idempotency_key", "Idempotency-Key header is required")
	}
	if len(in.IdempotencyKey) > 255 {
		return apperrors.Validation("idempotency_key", "must be at most 255 characters")
	}
	if in.Players < 1 {
		return apperrors.Validation("players", "must be at least 1")
	}
	if strings.TrimSpace(in.PaymentMethodRef) == "" {
		return apperrors.Validation("payment_method_ref", "is required")
	}
	if _, err := models.ParseDate(in.Date); err != nil {
		return err
	}
	if _, _, err := models.ParseClock(in.Time); err != nil {
		return err
	}
	return nil
}

// CreateBooking runs one booking attempt. Retrying with the same idempotency key
// and payload returns the booking created by the first successful attempt.
func (c *Coordinator) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.CreateBookingResponse, error) {
	ctx = logger.ContextWithIdempotencyKey(ctx, in.IdempotencyKey)
	resp, err := c.createBooking(ctx, in)
	metrics.BookingAttempts.WithLabelValues(outcomeLabel(err)).Inc()
	return resp, err
}

func outcomeLabel(err error) string {
	if err == nil {
		return "confirmed"
	}
	return apperrors.Describe(err).Code
}

func (c *Coordinator) createBooking(ctx context.Context, in CreateBookingInput) (*models.CreateBookingResponse, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	course, err := c.Courses.Resolve(ctx, in.CourseID, in.CourseSlug)
	if err != nil {
		return nil, err
	}
	slot := models.SlotKey{CourseID: course.ID, Date: in.Date, StartTime: in.Time}
	fingerprint := Fingerprint(course.ID, in.CreateBookingRequest)
	log := logger.WithContext(ctx).With("slot", slot.String())

	release, err := c.Locker.Acquire(ctx, in.IdempotencyKey)
	if err != nil {
		if idempotency.IsInFlight(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock idempotency key: %w", err)
	}
	defer release()

	existing, err := c.Bookings.GetByIdempotencyKey(ctx, in.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	if existing != nil {
		if existing.RequestFingerprint != fingerprint {
			return nil, apperrors.ErrIdempotencyConflict
		}
		log.Debug("Returning booking for repeated idempotency key", "booking_id", existing.ID)
		return responseFor(existing), nil
	}

	quote, err := c.quote(ctx, *course, in)
	if err != nil {
		return nil, err
	}
	log.Debug("Booking quoted", "total_price", quote.TotalPrice.String())

	var affiliate *models.Affiliate
	if code := strings.TrimSpace(in.AffiliateCode); code != "" {
		affiliate, err = c.Affiliates.GetByReferralCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to get affiliate: %w", err)
		}
		if affiliate == nil {
			return nil, apperrors.ErrAffiliateNotFound
		}
	}

	hold, err := c.reserve(ctx, slot, in)
	if err != nil {
		return nil, err
	}
	log = log.With("hold_token", hold.Token)
	log.Debug("Slot held", "players", in.Players, "expires_at", hold.ExpiresAt)

	total := quote.TotalPrice
	var code *models.DiscountCode
	if strings.TrimSpace(in.DiscountCode) != "" {
		code, total, err = c.applyDiscount(ctx, in.DiscountCode, quote.TotalPrice, hold)
		if err != nil {
			c.release(ctx, log, hold, false, "discount rejected")
			return nil, err
		}
		log.Debug("Discount applied", "code", code.Code, "adjusted_price", total.String())
	}
	discounted := code != nil

	currency := course.Currency
	orderID := payment.OrderIDFor(in.IdempotencyKey)
	captured, total, err := c.capture(ctx, log, orderID, total, currency, slot, in)
	if err != nil {
		c.release(ctx, log, hold, discounted, "payment not captured")
		return nil, err
	}
	log.Debug("Payment captured", "capture_id", captured.CaptureID, "order_id", orderID)

	req := models.CommitRequest{
		BookingID:          BookingIDFor(in.IdempotencyKey),
		HoldToken:          hold.Token,
		Slot:               slot,
		Players:            in.Players,
		TotalPrice:         total,
		Currency:           currency,
		Affiliate:          affiliate,
		GatewayOrderID:     orderID,
		CaptureID:          captured.CaptureID,
		IdempotencyKey:     in.IdempotencyKey,
		RequestFingerprint: fingerprint,
	}
	if code != nil {
		req.DiscountCodeID = &code.ID
	}

	booking, err := c.commitWithRetry(ctx, log, req)
	if err != nil {
		return nil, err
	}

	// A retry that reused an earlier capture closes the case that attempt opened.
	if n, err := c.Reconciliations.ResolveByOrder(context.WithoutCancel(ctx), orderID, "committed by customer retry", c.Clock.Now()); err != nil {
		log.Error("Failed to resolve reconciliation cases", "error", err)
	} else if n > 0 {
		log.Info("Resolved reconciliation cases", "resolved_cases", n)
	}

	log.Info("Booking confirmed", "booking_id", booking.ID, "total_price", booking.TotalPrice.String())
	return responseFor(booking), nil
}

func responseFor(b *models.Booking) *models.CreateBookingResponse {
	return &models.CreateBookingResponse{
		BookingID:        b.ID,
		Status:           b.Status,
		TotalPrice:       b.TotalPrice,
		Currency:         b.Currency,
		PaymentCaptureID: b.PaymentRef,
	}
}

func startStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.Tracer().Start(ctx, stage, trace.WithAttributes(attrs...))
}

func endStage(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (c *Coordinator) quote(ctx context.Context, course models.Course, in CreateBookingInput) (q models.PriceQuote, err error) {
	ctx, span := startStage(ctx, "quote", attribute.String("course_id", course.ID))
	defer func() { endStage(span, err) }()

	return c.Calculator.Quote(ctx, course, in.Date, in.Time, in.Players)
}

func (c *Coordinator) reserve(ctx context.Context, slot models.SlotKey, in CreateBookingInput) (hold models.Hold, err error) {
	ctx, span := startStage(ctx, "reserve", attribute.String("slot", slot.String()), attribute.Int("players", in.Players))
	defer func() { endStage(span, err) }()

	hold, err = c.Inventory.Reserve(ctx, inventory.HoldRequest{
		Slot:           slot,
		Players:        in.Players,
		IdempotencyKey: in.IdempotencyKey,
		TTL:            c.cfg.HoldTTL,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrSlotUnavailable) {
			metrics.ReserveConflicts.Inc()
			return models.Hold{}, err
		}
		return models.Hold{}, fmt.Errorf("failed to reserve slot: %w", err)
	}
	return hold, nil
}

// applyDiscount resolves the code and reserves one use of it for the hold, so
// concurrent attempts can never together exceed the code's cap.
func (c *Coordinator) applyDiscount(ctx context.Context, code string, total decimal.Decimal, hold models.Hold) (dc *models.DiscountCode, adjusted decimal.Decimal, err error) {
	ctx, span := startStage(ctx, "discount", attribute.String("code", discount.Normalize(code)))
	defer func() { endStage(span, err) }()

	dc, adjusted, err = c.Discounts.Resolve(ctx, code, total)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if err := c.DiscountStore.Reserve(ctx, dc.ID, hold.Token, hold.ExpiresAt); err != nil {
		if errors.Is(err, apperrors.ErrDiscountExhausted) {
			return nil, decimal.Zero, err
		}
		return nil, decimal.Zero, fmt.Errorf("failed to reserve discount use: %w", err)
	}
	return dc, adjusted, nil
}

// release gives the hold back, together with its discount reservation. It runs
// detached from the request so a cancelled client still frees capacity; the
// reaper covers any failure here.
func (c *Coordinator) release(ctx context.Context, log *slog.Logger, hold models.Hold, discounted bool, reason string) {
	ctx = context.WithoutCancel(ctx)
	if discounted {
		if err := c.DiscountStore.ReleaseReservation(ctx, hold.Token); err != nil {
			log.Error("Failed to release discount reservation", "error", err, "reason", reason)
		}
	}
	if err := c.Inventory.Release(ctx, hold.Token); err != nil {
		log.Error("Failed to release hold", "error", err, "reason", reason)
		return
	}
	log.Debug("Hold released", "reason", reason)
}

// capture charges the adjusted total. When an earlier attempt under the same
// key already captured, that capture and its amount are reused.
func (c *Coordinator) capture(ctx context.Context, log *slog.Logger, orderID string, amount decimal.Decimal, currency string, slot models.SlotKey, in CreateBookingInput) (result payment.CaptureResult, charged decimal.Decimal, err error) {
	ctx, span := startStage(ctx, "capture",
		attribute.String("provider", c.Gateway.Name()),
		attribute.String("order_id", orderID),
		attribute.String("amount", amount.String()))
	defer func() { endStage(span, err) }()

	prior, err := c.Payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return payment.CaptureResult{}, decimal.Zero, fmt.Errorf("failed to get payment record: %w", err)
	}
	if prior != nil && prior.Status == models.PaymentSucceeded && prior.CaptureID != "" {
		log.Info("Reusing capture from an earlier attempt", "order_id", orderID, "capture_id", prior.CaptureID)
		return payment.CaptureResult{
			CaptureID: prior.CaptureID,
			OrderID:   orderID,
			Status:    payment.CaptureSucceeded,
		}, prior.Amount, nil
	}
	if prior == nil {
		record := &models.PaymentRecord{
			GatewayOrderID: orderID,
			Provider:       c.Gateway.Name(),
			Amount:         amount,
			Currency:       currency,
			Status:         models.PaymentPending,
			IdempotencyKey: in.IdempotencyKey,
		}
		if err := c.Payments.Create(ctx, record); err != nil {
			return payment.CaptureResult{}, decimal.Zero, fmt.Errorf("failed to create payment record: %w", err)
		}
	}

	captureCtx, cancel := context.WithTimeout(ctx, c.cfg.PaymentTimeout)
	defer cancel()

	started := time.Now()
	result, err = c.Gateway.Capture(captureCtx, payment.CaptureRequest{
		OrderID:          orderID,
		Amount:           amount,
		Currency:         currency,
		PaymentMethodRef: in.PaymentMethodRef,
		IdempotencyKey:   in.IdempotencyKey,
		Description:      fmt.Sprintf("Tee time %s %s for %d", slot.Date, slot.StartTime, in.Players),
	})
	if err != nil {
		if payment.IsTimeout(err) || errors.Is(captureCtx.Err(), context.DeadlineExceeded) {
			metrics.ObserveCapture(c.Gateway.Name(), "timeout", started)
			log.Warn("Payment gateway timed out", "error", err, "order_id", orderID)
			return payment.CaptureResult{}, decimal.Zero, fmt.Errorf("%w: %v", apperrors.ErrGatewayTimeout, err)
		}
		metrics.ObserveCapture(c.Gateway.Name(), "error", started)
		log.Error("Payment gateway call failed", "error", err, "order_id", orderID)
		return payment.CaptureResult{}, decimal.Zero, fmt.Errorf("%w: %v", apperrors.ErrGatewayUnavailable, err)
	}
	metrics.ObserveCapture(c.Gateway.Name(), string(result.Status), started)

	detached := context.WithoutCancel(ctx)
	status := paymentStatusFor(result.Status)
	if err := c.Payments.RecordCapture(detached, orderID, result.CaptureID, status); err != nil {
		log.Error("Failed to record capture result", "error", err, "order_id", orderID, "status", status)
	}

	c.publish(detached, eventSubjectFor(status), models.PaymentResultEvent{
		GatewayOrderID: orderID,
		CaptureID:      result.CaptureID,
		Provider:       c.Gateway.Name(),
		Amount:         amount,
		Status:         status,
		Timestamp:      c.Clock.Now(),
	})

	switch result.Status {
	case payment.CaptureSucceeded:
		return result, amount, nil
	case payment.CaptureFailed:
		log.Info("Payment declined", "order_id", orderID, "reason", result.Reason)
		return payment.CaptureResult{}, decimal.Zero, fmt.Errorf("%w: %s", apperrors.ErrPaymentDeclined, result.Reason)
	default:
		log.Info("Payment not completed", "order_id", orderID, "capture_id", result.CaptureID)
		return payment.CaptureResult{}, decimal.Zero, apperrors.ErrPaymentPending
	}
}

func paymentStatusFor(s payment.CaptureStatus) models.PaymentStatus {
	switch s {
	case payment.CaptureSucceeded:
		return models.PaymentSucceeded
	case payment.CaptureFailed:
		return models.PaymentFailed
	default:
		return models.PaymentPending
	}
}

func eventSubjectFor(s models.PaymentStatus) string {
	if s == models.PaymentSucceeded {
		return models.EventPaymentCaptured
	}
	return models.EventPaymentFailed
}

// commitWithRetry commits on a context detached from the caller: the money has
// already moved, so a client disconnect must not abandon the commit.
func (c *Coordinator) commitWithRetry(ctx context.Context, log *slog.Logger, req models.CommitRequest) (booking *models.Booking, err error) {
	ctx, span := startStage(context.WithoutCancel(ctx), "commit", attribute.String("booking_id", req.BookingID))
	defer func() { endStage(span, err) }()

	log = log.With("booking_id", req.BookingID, "order_id", req.GatewayOrderID)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.CommitMaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.CommitRetries.Inc()
			time.Sleep(c.cfg.CommitBackoff * time.Duration(1<<(attempt-2)))
		}

		booking, lastErr = c.commit(ctx, log, req)
		if lastErr == nil {
			return booking, nil
		}
		if isPermanentCommitError(lastErr) {
			break
		}
		log.Warn("Booking commit failed", "error", lastErr, "attempt", attempt)
	}

	reason := models.ReasonCommitFailed
	switch {
	case errors.Is(lastErr, apperrors.ErrSlotUnavailable):
		reason = models.ReasonCapacityLost
	case errors.Is(lastErr, apperrors.ErrDiscountExhausted):
		reason = models.ReasonDiscountLost
	}
	log.Error("Booking commit exhausted, escalating to reconciliation", "error", lastErr, "reason", reason)
	c.escalate(ctx, log, req, reason, lastErr)

	return nil, fmt.Errorf("%w: %v", apperrors.ErrCommitFailure, lastErr)
}

// isPermanentCommitError reports failures a commit retry cannot fix.
func isPermanentCommitError(err error) bool {
	return errors.Is(err, apperrors.ErrSlotUnavailable) ||
		errors.Is(err, apperrors.ErrDiscountExhausted) ||
		errors.Is(err, apperrors.ErrIdempotencyConflict)
}

// errCommittedConcurrently rolls back a commit whose booking row was written by
// another transaction between the existence check and the insert.
var errCommittedConcurrently = errors.New("booking committed concurrently")

// commit applies every post-payment write in one transaction. Each write is
// idempotent, so the whole commit can be re-driven after a partial failure.
// A booking is committed against exactly one hold: when the booking already
// exists, this request's hold and discount reservation are released instead.
func (c *Coordinator) commit(ctx context.Context, log *slog.Logger, req models.CommitRequest) (*models.Booking, error) {
	booking := &models.Booking{
		ID:                 req.BookingID,
		Slot:               req.Slot,
		Players:            req.Players,
		TotalPrice:         req.TotalPrice,
		Currency:           req.Currency,
		DiscountCodeID:     req.DiscountCodeID,
		Status:             models.BookingConfirmed,
		PaymentRef:         req.CaptureID,
		GatewayOrderID:     req.GatewayOrderID,
		IdempotencyKey:     req.IdempotencyKey,
		RequestFingerprint: req.RequestFingerprint,
	}
	if req.Affiliate != nil {
		booking.AffiliateID = &req.Affiliate.ID
	}

	var created *models.Commission
	var existing *models.Booking
	err := c.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		existing, err = c.Bookings.GetByID(ctx, req.BookingID)
		if err != nil {
			return fmt.Errorf("failed to get booking: %w", err)
		}
		if existing != nil {
			if existing.IdempotencyKey != req.IdempotencyKey {
				return apperrors.ErrIdempotencyConflict
			}
			return nil
		}

		inserted, err := c.Bookings.Create(ctx, booking)
		if err != nil {
			return err
		}
		if !inserted {
			return errCommittedConcurrently
		}
		if err := c.Inventory.Commit(ctx, req.HoldToken); err != nil {
			return err
		}
		if req.DiscountCodeID != nil {
			if err := c.DiscountStore.Redeem(ctx, req.HoldToken, booking.ID); err != nil {
				if errors.Is(err, apperrors.ErrDiscountExhausted) {
					return err
				}
				return fmt.Errorf("failed to redeem discount: %w", err)
			}
		}
		if req.Affiliate != nil {
			cm, err := c.Commissions.Attribute(ctx, *req.Affiliate, booking.TotalPrice, booking.ID)
			switch {
			case err == nil:
				created = &cm
			case errors.Is(err, apperrors.ErrDuplicateCommission):
			default:
				return err
			}
		}
		return c.Payments.LinkBooking(ctx, req.GatewayOrderID, booking.ID)
	})
	if errors.Is(err, errCommittedConcurrently) {
		if existing, err = c.Bookings.GetByID(ctx, req.BookingID); err == nil && existing == nil {
			err = errCommittedConcurrently
		}
	}
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Releasing a committed hold is a no-op, so re-driving the commit that
		// created the booking leaves it untouched.
		c.release(ctx, log, models.Hold{Token: req.HoldToken}, req.DiscountCodeID != nil, "booking already committed")
		log.Info("Booking already committed", "hold_token", req.HoldToken)
		return existing, nil
	}

	c.publish(ctx, models.EventBookingConfirmed, models.BookingConfirmedEvent{
		BookingID:  booking.ID,
		Slot:       booking.Slot,
		Players:    booking.Players,
		TotalPrice: booking.TotalPrice,
		Currency:   booking.Currency,
		PaymentRef: booking.PaymentRef,
		Timestamp:  c.Clock.Now(),
	})
	if created != nil {
		c.publish(ctx, models.EventCommissionCreated, models.CommissionCreatedEvent{
			CommissionID: created.ID,
			AffiliateID:  created.AffiliateID,
			BookingID:    created.BookingID,
			Amount:       created.Amount,
			Timestamp:    created.CreatedAt,
		})
	}
	return booking, nil
}

// escalate opens a reconciliation case and, for retryable failures, hands the
// commit to the background reconciler.
func (c *Coordinator) escalate(ctx context.Context, log *slog.Logger, req models.CommitRequest, reason string, cause error) {
	payload, err := json.Marshal(req)
	if err != nil {
		log.Error("Failed to encode commit request", "error", err)
	}

	rc := &models.Reconciliation{
		BookingID:      &req.BookingID,
		GatewayOrderID: req.GatewayOrderID,
		Reason:         reason,
		Payload:        payload,
	}
	if err := c.Reconciliations.Open(ctx, rc); err != nil {
		// Nothing durable records this case; the log line is the last resort.
		log.Error("Failed to open reconciliation case", "error", err, "commit_request", string(payload), "cause", cause)
	} else {
		metrics.ReconciliationsOpened.WithLabelValues(reason).Inc()
		c.publish(ctx, models.EventReconciliationOpened, models.ReconciliationOpenedEvent{
			ReconciliationID: rc.ID,
			GatewayOrderID:   req.GatewayOrderID,
			Reason:           reason,
			Timestamp:        c.Clock.Now(),
		})
	}

	if reason == models.ReasonCommitFailed {
		c.publish(ctx, models.EventBookingReconcile, req)
	}
}

// RetryCommit re-drives a commit that failed after payment. It holds the
// idempotency key like a customer retry does, so the two never commit at the
// same time. On success every open case for the order is resolved.
func (c *Coordinator) RetryCommit(ctx context.Context, req models.CommitRequest) (*models.Booking, error) {
	ctx = logger.ContextWithIdempotencyKey(ctx, req.IdempotencyKey)
	log := logger.WithContext(ctx).With("booking_id", req.BookingID, "order_id", req.GatewayOrderID)

	release, err := c.Locker.Acquire(ctx, req.IdempotencyKey)
	if err != nil {
		if idempotency.IsInFlight(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to lock idempotency key: %w", err)
	}
	defer release()

	booking, err := c.commit(ctx, log, req)
	if err != nil {
		return nil, err
	}

	n, err := c.Reconciliations.ResolveByOrder(ctx, req.GatewayOrderID, "committed by reconciler", c.Clock.Now())
	if err != nil {
		log.Error("Failed to resolve reconciliation cases", "error", err)
	}
	log.Info("Booking committed by reconciler", "resolved_cases", n)
	return booking, nil
}

func (c *Coordinator) publish(ctx context.Context, subject string, v interface{}) {
	publish(ctx, c.Publisher, subject, v)
}

func publish(ctx context.Context, p messaging.Publisher, subject string, v interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, v); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event", "error", err, "event_type", subject)
	}
}
