package models

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "teetime/internal/errors"

	"github.com/shopspring/decimal"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Course is a golf course with its weekday and weekend base rates.
type Course struct {
	ID           string          `json:"id" db:"id"`
	Slug         string          `json:"slug" db:"slug"`
	Name         string          `json:"name" db:"name"`
	Description  string          `json:"description,omitempty" db:"description"`
	Location     string          `json:"location,omitempty" db:"location"`
	Timezone     string          `json:"timezone" db:"timezone"`
	WeekdayPrice decimal.Decimal `json:"weekday_price" db:"weekday_price"`
	WeekendPrice decimal.Decimal `json:"weekend_price" db:"weekend_price"`
	Currency     string          `json:"currency" db:"currency"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// TimeLocation returns the course timezone, falling back to UTC.
func (c Course) TimeLocation() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlotKey identifies a bookable tee time.
type SlotKey struct {
	CourseID  string `json:"course_id"`
	Date      string `json:"date"`
	StartTime string `json:"time"`
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.CourseID, k.Date, k.StartTime)
}

// Validate checks the key's date and time formats.
func (k SlotKey) Validate() error {
	if k.CourseID == "" {
		return apperrors.Validation("course_id", "is required")
	}
	if _, err := ParseDate(k.Date); err != nil {
		return err
	}
	if _, _, err := ParseClock(k.StartTime); err != nil {
		return err
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.Validation("date", "must be YYYY-MM-DD")
	}
	return d, nil
}

// ParseClock parses an HH:MM start time.
func ParseClock(s string) (hour, minute int, err error) {
	t, perr := time.Parse(TimeLayout, s)
	if perr != nil {
		return 0, 0, apperrors.Validation("time", "must be HH:MM")
	}
	return t.Hour(), t.Minute(), nil
}

// Slot holds capacity counters for a tee time.
type Slot struct {
	SlotKey
	Capacity  int       `json:"capacity" db:"capacity"`
	HeldCount int       `json:"held_count" db:"held_count"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Available is the capacity not currently held.
func (s Slot) Available() int {
	return s.Capacity - s.HeldCount
}

type HoldStatus string

const (
	HoldStatusHeld      HoldStatus = "held"
	HoldStatusCommitted HoldStatus = "committed"
	HoldStatusReleased  HoldStatus = "released"
)

// Hold is a temporary reservation of slot capacity.
type Hold struct {
	Token          string     `json:"token" db:"token"`
	Slot           SlotKey    `json:"slot"`
	Players        int        `json:"players" db:"players"`
	Status         HoldStatus `json:"status" db:"status"`
	IdempotencyKey string     `json:"idempotency_key,omitempty" db:"idempotency_key"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// DiscountCode is a capped, time-bounded price modifier. Percentage values are fractions (0.10 = 10%).
type DiscountCode struct {
	ID              string           `json:"id" db:"id"`
	Code            string           `json:"code" db:"code"`
	Type            DiscountType     `json:"discount_type" db:"discount_type"`
	Value           decimal.Decimal  `json:"value" db:"value"`
	ExpiresAt       *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	MaxUses         *int             `json:"max_uses,omitempty" db:"max_uses"`
	CurrentUses     int              `json:"current_uses" db:"current_uses"`
	ReservedUses    int              `json:"reserved_uses" db:"reserved_uses"`
	MinBookingValue *decimal.Decimal `json:"min_booking_value,omitempty" db:"min_booking_value"`
}

// Affiliate is a referral partner paid a share of attributed bookings.
type Affiliate struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	ReferralCode   string          `json:"referral_code" db:"referral_code"`
	CommissionRate decimal.Decimal `json:"commission_rate" db:"commission_rate"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingRefunded  BookingStatus = "refunded"
)

// Booking is the durable result of a successful reservation.
type Booking struct {
	ID                 string          `json:"id" db:"id"`
	Slot               SlotKey         `json:"slot"`
	Players            int             `json:"players" db:"players"`
	TotalPrice         decimal.Decimal `json:"total_price" db:"total_price"`
	Currency           string          `json:"currency" db:"currency"`
	DiscountCodeID     *string         `json:"discount_code_id,omitempty" db:"discount_code_id"`
	AffiliateID        *string         `json:"affiliate_id,omitempty" db:"affiliate_id"`
	Status             BookingStatus   `json:"status" db:"status"`
	PaymentRef         string          `json:"payment_ref" db:"payment_ref"`
	GatewayOrderID     string          `json:"gateway_order_id" db:"gateway_order_id"`
	IdempotencyKey     string          `json:"-" db:"idempotency_key"`
	RequestFingerprint string          `json:"-" db:"request_fingerprint"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionPaid      CommissionStatus = "paid"
	CommissionCancelled CommissionStatus = "cancelled"
)

// Commission is owed to an affiliate for a single booking.
type Commission struct {
	ID          string           `json:"id" db:"id"`
	AffiliateID string           `json:"affiliate_id" db:"affiliate_id"`
	BookingID   string           `json:"booking_id" db:"booking_id"`
	Amount      decimal.Decimal  `json:"amount" db:"amount"`
	Status      CommissionStatus `json:"status" db:"status"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentRecord mirrors the gateway's view of a capture.
type PaymentRecord struct {
	GatewayOrderID string          `json:"gateway_order_id" db:"gateway_order_id"`
	Provider       string          `json:"provider" db:"provider"`
	CaptureID      string          `json:"capture_id,omitempty" db:"capture_id"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Currency       string          `json:"currency" db:"currency"`
	Status         PaymentStatus   `json:"status" db:"status"`
	BookingID      *string         `json:"booking_id,omitempty" db:"booking_id"`
	IdempotencyKey string          `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

type ReconciliationStatus string

const (
	ReconciliationOpen     ReconciliationStatus = "open"
	ReconciliationResolved ReconciliationStatus = "resolved"
)

// Reconciliation reasons.
const (
	ReasonCommitFailed           = "commit_failed"
	ReasonCapacityLost           = "capacity_lost"
	ReasonDiscountLost           = "discount_lost"
	ReasonCapturedWithoutBooking = "captured_without_booking"
)

// Reconciliation is a case that needs an operator: money moved but the booking state did not follow.
type Reconciliation struct {
	ID             string               `json:"id" db:"id"`
	BookingID      *string              `json:"booking_id,omitempty" db:"booking_id"`
	GatewayOrderID string               `json:"gateway_order_id" db:"gateway_order_id"`
	Reason         string               `json:"reason" db:"reason"`
	Payload        json.RawMessage      `json:"payload,omitempty" db:"payload"`
	Status         ReconciliationStatus `json:"status" db:"status"`
	Note           string               `json:"note,omitempty" db:"note"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	ResolvedAt     *time.Time           `json:"resolved_at,omitempty" db:"resolved_at"`
}

// PriceQuote is an ephemeral price breakdown for a tee time.
type PriceQuote struct {
	BasePrice           decimal.Decimal `json:"base_price"`
	SeasonFactor        decimal.Decimal `json:"season_factor"`
	DemandFactor        decimal.Decimal `json:"demand_factor"`
	TimeFactor          decimal.Decimal `json:"time_factor"`
	AdvanceFactor       decimal.Decimal `json:"advance_factor"`
	FinalPricePerPlayer decimal.Decimal `json:"final_price_per_player"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	Players             int             `json:"players"`
	DemandCount         int             `json:"demand_count"`
	DaysInAdvance       int             `json:"days_in_advance"`
	Weekend             bool            `json:"weekend"`
}
