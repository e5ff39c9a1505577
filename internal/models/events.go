package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event bus subjects
const (
	EventBookingConfirmed     = "booking.confirmed"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingRefunded      = "booking.refunded"
	EventBookingReconcile     = "booking.reconcile"
	EventCommissionCreated    = "commission.created"
	EventPaymentCaptured      = "payment.captured"
	EventPaymentFailed        = "payment.failed"
	EventReconciliationOpened = "reconciliation.opened"
	EventHoldsExpired         = "holds.expired"
)

// BookingConfirmedEvent is published after a booking commits
type BookingConfirmedEvent struct {
	BookingID  string          `json:"booking_id"`
	Slot       SlotKey         `json:"slot"`
	Players    int             `json:"players"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency"`
	PaymentRef string          `json:"payment_ref"`
	Timestamp  time.Time       `json:"timestamp"`
}

// BookingStatusEvent is published on cancellation and refund
type BookingStatusEvent struct {
	BookingID string        `json:"booking_id"`
	From      BookingStatus `json:"from"`
	To        BookingStatus `json:"to"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// CommissionCreatedEvent is published when an affiliate earns a commission
type CommissionCreatedEvent struct {
	CommissionID string          `json:"commission_id"`
	AffiliateID  string          `json:"affiliate_id"`
	BookingID    string          `json:"booking_id"`
	Amount       decimal.Decimal `json:"amount"`
	Timestamp    time.Time       `json:"timestamp"`
}

// PaymentResultEvent is published after every capture attempt that reached the gateway
type PaymentResultEvent struct {
	GatewayOrderID string          `json:"gateway_order_id"`
	CaptureID      string          `json:"capture_id,omitempty"`
	Provider       string          `json:"provider"`
	Amount         decimal.Decimal `json:"amount"`
	Status         PaymentStatus   `json:"status"`
	Timestamp      time.Time       `json:"timestamp"`
}

// ReconciliationOpenedEvent alerts operators that a case needs attention
type ReconciliationOpenedEvent struct {
	ReconciliationID string    `json:"reconciliation_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	Reason           string    `json:"reason"`
	Timestamp        time.Time `json:"timestamp"`
}

// HoldsExpiredEvent is published by the hold reaper
type HoldsExpiredEvent struct {
	Released          int       `json:"released"`
	DiscountsReleased int       `json:"discounts_released,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
