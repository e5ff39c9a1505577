package payment

import (
	"context"
	"errors"
	"net"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrTimeout means the gateway did not answer in time; the outcome is unknown.
	ErrTimeout = errors.New("payment gateway timeout")
	// ErrUnavailable means the gateway answered with a transport or server error.
	ErrUnavailable = errors.New("payment gateway unavailable")
)

type CaptureStatus string

const (
	CaptureSucceeded CaptureStatus = "succeeded"
	CaptureFailed    CaptureStatus = "failed"
	CapturePending   CaptureStatus = "pending"
)

// CaptureRequest asks the gateway to take Amount from PaymentMethodRef.
// OrderID and IdempotencyKey are stable across retries of the same attempt.
type CaptureRequest struct {
	OrderID          string
	Amount           decimal.Decimal
	Currency         string
	PaymentMethodRef string
	IdempotencyKey   string
	Description      string
}

type CaptureResult struct {
	CaptureID string
	OrderID   string
	Status    CaptureStatus
	Reason    string
}

// RefundRequest refunds a capture. A nil Amount refunds everything.
type RefundRequest struct {
	CaptureID string
	OrderID   string
	Amount    *decimal.Decimal
	Reason    string
}

type RefundResult struct {
	RefundID string
	Status   string
}

// Gateway is the narrow contract every payment provider adapter implements.
type Gateway interface {
	Name() string
	Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}

var orderNamespace = uuid.MustParse("6f1c2b8e-7d0a-4f55-9b7e-2a8c1e3d4b60")

// OrderIDFor derives the gateway order id from an idempotency key, so retries reuse one order.
func OrderIDFor(idempotencyKey string) string {
	return "tt-" + uuid.NewSHA1(orderNamespace, []byte(idempotencyKey)).String()
}

// IsTimeout reports whether err means the gateway outcome is unknown because of a deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
