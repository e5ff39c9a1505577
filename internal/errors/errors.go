package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrUnauthorized = errors.New("operator is not authorized")

// Request and lookup errors.
var (
	ErrValidation             = errors.New("validation failed")
	ErrCourseNotFound         = errors.New("course not found")
	ErrAffiliateNotFound      = errors.New("affiliate not found")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrHoldNotFound           = errors.New("hold not found")
	ErrReconciliationNotFound = errors.New("reconciliation not found")
	ErrIdempotencyInFlight    = errors.New("request with this idempotency key is in progress")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with a different request")
	ErrInvalidTransition      = errors.New("booking status transition not allowed")
	ErrRefundNotConfirmed     = errors.New("refund requires operator confirmation")
)

// Business rule errors raised while a booking attempt is in flight.
var (
	ErrSlotUnavailable      = errors.New("slot unavailable")
	ErrDiscountNotFound     = errors.New("discount code not found")
	ErrDiscountExpired      = errors.New("discount code expired")
	ErrDiscountExhausted    = errors.New("discount code usage limit reached")
	ErrDiscountBelowMinimum = errors.New("booking total below discount minimum")
	ErrDuplicateCommission  = errors.New("commission already exists for booking")
)

// Payment and commit errors.
var (
	ErrPaymentDeclined    = errors.New("payment declined")
	ErrPaymentPending     = errors.New("payment not completed")
	ErrGatewayTimeout     = errors.New("payment gateway timeout")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrCommitFailure      = errors.New("booking commit failed")
)

// ValidationError describes malformed input for a single field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validation builds a ValidationError for field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Descriptor is the client-facing shape of an error.
type Descriptor struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

type rule struct {
	target error
	desc   Descriptor
}

var rules = []rule{
	{ErrSlotUnavailable, Descriptor{http.StatusConflict, "slot_unavailable", "The selected tee time does not have enough capacity", false}},
	{ErrCourseNotFound, Descriptor{http.StatusNotFound, "course_not_found", "Course not found", false}},
	{ErrDiscountNotFound, Descriptor{http.StatusNotFound, "discount_not_found", "Discount code not found", false}},
	{ErrAffiliateNotFound, Descriptor{http.StatusNotFound, "affiliate_not_found", "Affiliate not found", false}},
	{ErrBookingNotFound, Descriptor{http.StatusNotFound, "booking_not_found", "Booking not found", false}},
	{ErrReconciliationNotFound, Descriptor{http.StatusNotFound, "reconciliation_not_found", "Reconciliation case not found", false}},
	{ErrDiscountExpired, Descriptor{http.StatusBadRequest, "discount_expired", "Discount code has expired", false}},
	{ErrDiscountExhausted, Descriptor{http.StatusBadRequest, "discount_exhausted", "Discount code has reached its usage limit", false}},
	{ErrDiscountBelowMinimum, Descriptor{http.StatusBadRequest, "discount_below_minimum", "Booking total is below the discount minimum", false}},
	{ErrPaymentDeclined, Descriptor{http.StatusPaymentRequired, "payment_declined", "Payment was declined", false}},
	{ErrPaymentPending, Descriptor{http.StatusPaymentRequired, "payment_pending", "Payment was not completed, retry with the same idempotency key", true}},
	{ErrGatewayTimeout, Descriptor{http.StatusGatewayTimeout, "gateway_timeout", "Payment gateway did not respond, retry with the same idempotency key", true}},
	{ErrGatewayUnavailable, Descriptor{http.StatusBadGateway, "gateway_unavailable", "Payment gateway is unavailable, retry with the same idempotency key", true}},
	{ErrIdempotencyInFlight, Descriptor{http.StatusConflict, "request_in_progress", "A request with this idempotency key is already in progress", true}},
	{ErrIdempotencyConflict, Descriptor{http.StatusConflict, "idempotency_conflict", "Idempotency key was already used with a different request", false}},
	{ErrInvalidTransition, Descriptor{http.StatusConflict, "invalid_transition", "Booking cannot change to the requested status", false}},
	{ErrRefundNotConfirmed, Descriptor{http.StatusBadRequest, "refund_not_confirmed", "Refund requires explicit operator confirmation", false}},
	{ErrUnauthorized, Descriptor{http.StatusUnauthorized, "unauthorized", "Unauthorized", false}},
}

var internalDescriptor = Descriptor{http.StatusInternalServerError, "internal_error", "The booking could not be completed, it will be reconciled", false}

// Describe maps an error onto its HTTP status and machine-readable code.
// Anything outside the known taxonomy is reported as a generic internal error.
func Describe(err error) Descriptor {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return Descriptor{http.StatusBadRequest, "validation_error", verr.Error(), false}
	}
	if errors.Is(err, ErrValidation) {
		return Descriptor{http.StatusBadRequest, "validation_error", err.Error(), false}
	}
	for _, r := range rules {
		if errors.Is(err, r.target) {
			return r.desc
		}
	}
	if errors.Is(err, ErrCommitFailure) {
		return internalDescriptor
	}
	return Descriptor{http.StatusInternalServerError, "internal_error", "Internal server error", false}
}
