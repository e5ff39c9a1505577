package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateBookingRequest - модель запроса на бронирование ти-тайма
type CreateBookingRequest struct {
	CourseID         string `json:"course_id"`
	CourseSlug       string `json:"course_slug"`
	Date             string `json:"date" binding:"required,isodate"`
	Time             string `json:"time" binding:"required,hhmm"`
	Players          int    `json:"players" binding:"required,min=1"`
	DiscountCode     string `json:"discount_code"`
	AffiliateCode    string `json:"affiliate_code"`
	PaymentMethodRef string `json:"payment_method_ref" binding:"required"`
}

// CreateBookingResponse - модель ответа на бронирование
type CreateBookingResponse struct {
	BookingID        string          `json:"booking_id"`
	Status           BookingStatus   `json:"status"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Currency         string          `json:"currency"`
	PaymentCaptureID string          `json:"payment_capture_id"`
}

// QuoteRequest - модель запроса на расчет цены
type QuoteRequest struct {
	CourseID     string `json:"course_id"`
	CourseSlug   string `json:"course_slug"`
	Date         string `json:"date" binding:"required,isodate"`
	Time         string `json:"time" binding:"required,hhmm"`
	Players      int    `json:"players" binding:"required,min=1"`
	DiscountCode string `json:"discount_code"`
}

// QuoteResponse - расчет цены с разбивкой по коэффициентам
type QuoteResponse struct {
	CourseID      string           `json:"course_id"`
	Currency      string           `json:"currency"`
	Quote         PriceQuote       `json:"quote"`
	DiscountCode  string           `json:"discount_code,omitempty"`
	AdjustedPrice *decimal.Decimal `json:"adjusted_price,omitempty"`
	DiscountError string           `json:"discount_error,omitempty"`
}

// BookingResponse - модель бронирования для GET /api/bookings/:id
type BookingResponse struct {
	ID         string          `json:"id"`
	CourseID   string          `json:"course_id"`
	Date       string          `json:"date"`
	Time       string          `json:"time"`
	Players    int             `json:"players"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Currency   string          `json:"currency"`
	Status     BookingStatus   `json:"status"`
	PaymentRef string          `json:"payment_ref"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RefundBookingRequest - подтверждение оператора на возврат
type RefundBookingRequest struct {
	Confirm bool    `json:"confirm"`
	Amount  *string `json:"amount"`
	Reason  string  `json:"reason"`
}

// ResolveReconciliationRequest - закрытие кейса сверки оператором
type ResolveReconciliationRequest struct {
	Note string `json:"note" binding:"required"`
}

// SlotAvailability - доступность одного ти-тайма
type SlotAvailability struct {
	Time      string `json:"time"`
	Capacity  int    `json:"capacity"`
	Available int    `json:"available"`
}

// ListSlotsResponse - список ти-таймов курса на дату
type ListSlotsResponse struct {
	CourseID string             `json:"course_id"`
	Date     string             `json:"date"`
	Slots    []SlotAvailability `json:"slots"`
}

// ListCoursesResponse - результат поиска полей
type ListCoursesResponse []Course

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// CommitRequest carries everything needed to commit a paid booking, so the commit can be re-driven later.
type CommitRequest struct {
	BookingID          string          `json:"booking_id"`
	HoldToken          string          `json:"hold_token"`
	Slot               SlotKey         `json:"slot"`
	Players            int             `json:"players"`
	TotalPrice         decimal.Decimal `json:"total_price"`
	Currency           string          `json:"currency"`
	DiscountCodeID     *string         `json:"discount_code_id,omitempty"`
	Affiliate          *Affiliate      `json:"affiliate,omitempty"`
	GatewayOrderID     string          `json:"gateway_order_id"`
	CaptureID          string          `json:"capture_id"`
	IdempotencyKey     string          `json:"idempotency_key"`
	RequestFingerprint string          `json:"request_fingerprint"`
}
