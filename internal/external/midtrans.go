package external

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"teetime/internal/payment"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
)

const MidtransProvider = "midtrans"

type MidtransConfig struct {
	ServerKey  string
	Production bool
}

// MidtransGateway charges tokenized cards through the Midtrans Core API.
// Midtrans settles in whole currency units.
type MidtransGateway struct {
	client coreapi.Client
}

func NewMidtransGateway(cfg MidtransConfig) *MidtransGateway {
	var c coreapi.Client
	if cfg.Production {
		c.New(cfg.ServerKey, midtrans.Production)
	} else {
		c.New(cfg.ServerKey, midtrans.Sandbox)
	}
	return &MidtransGateway{client: c}
}

func (g *MidtransGateway) Name() string { return MidtransProvider }

// MidtransCaptureStatus maps transaction_status and fraud_status onto a capture outcome.
func MidtransCaptureStatus(transactionStatus, fraudStatus string) payment.CaptureStatus {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		if strings.EqualFold(fraudStatus, "challenge") {
			return payment.CapturePending
		}
		return payment.CaptureSucceeded
	case "settlement":
		return payment.CaptureSucceeded
	case "deny", "cancel", "expire", "failure", "refund", "partial_refund":
		return payment.CaptureFailed
	default:
		return payment.CapturePending
	}
}

// call runs fn off the request goroutine; the SDK has no context support.
func call[T any](ctx context.Context, fn func() (T, *midtrans.Error)) (T, error) {
	type result struct {
		v   T
		err *midtrans.Error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v: v, err: err}
	}()

	var zero T
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%w: %v", payment.ErrTimeout, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return zero, midtransError(r.err)
		}
		return r.v, nil
	}
}

func midtransError(err *midtrans.Error) error {
	if err.RawError != nil && payment.IsTimeout(err.RawError) {
		return fmt.Errorf("%w: %s", payment.ErrTimeout, err.Message)
	}
	if err.StatusCode == 0 || err.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: midtrans %d: %s", payment.ErrUnavailable, err.StatusCode, err.Message)
	}
	return fmt.Errorf("midtrans %d: %s", err.StatusCode, err.Message)
}

func (g *MidtransGateway) Capture(ctx context.Context, req payment.CaptureRequest) (payment.CaptureResult, error) {
	client := g.client
	client.Options = &midtrans.ConfigOptions{}
	client.Options.SetPaymentIdempotencyKey(req.IdempotencyKey)

	charge := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeCreditCard,
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderID,
			GrossAmt: req.Amount.Round(0).IntPart(),
		},
		CreditCard: &coreapi.CreditCardDetails{
			TokenID: req.PaymentMethodRef,
		},
	}

	resp, err := call(ctx, func() (*coreapi.ChargeResponse, *midtrans.Error) {
		return client.ChargeTransaction(charge)
	})
	if err != nil {
		return payment.CaptureResult{}, err
	}

	result := payment.CaptureResult{
		CaptureID: resp.TransactionID,
		OrderID:   resp.OrderID,
		Status:    MidtransCaptureStatus(resp.TransactionStatus, resp.FraudStatus),
	}
	if result.OrderID == "" {
		result.OrderID = req.OrderID
	}
	if result.Status == payment.CaptureFailed {
		result.Reason = resp.StatusMessage
	}
	return result, nil
}

func (g *MidtransGateway) Refund(ctx context.Context, req payment.RefundRequest) (payment.RefundResult, error) {
	refund := &coreapi.RefundReq{
		RefundKey: payment.EventID(req.OrderID, "refund", req.Reason),
		Reason:    req.Reason,
	}
	if req.Amount != nil {
		refund.Amount = req.Amount.Round(0).IntPart()
	}

	client := g.client
	resp, err := call(ctx, func() (*coreapi.RefundResponse, *midtrans.Error) {
		return client.RefundTransaction(req.OrderID, refund)
	})
	if err != nil {
		return payment.RefundResult{}, fmt.Errorf("failed to refund %s: %w", req.OrderID, err)
	}
	return payment.RefundResult{RefundID: refund.RefundKey, Status: resp.TransactionStatus}, nil
}

type midtransNotification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	FraudStatus       string `json:"fraud_status"`
}

// MidtransWebhookDecoder verifies SHA512(order_id + status_code + gross_amount + server_key).
type MidtransWebhookDecoder struct {
	serverKey string
}

func NewMidtransWebhookDecoder(serverKey string) *MidtransWebhookDecoder {
	return &MidtransWebhookDecoder{serverKey: serverKey}
}

func (d *MidtransWebhookDecoder) Provider() string { return MidtransProvider }

func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}

func (d *MidtransWebhookDecoder) Decode(header http.Header, body []byte) (payment.Event, error) {
	var n midtransNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return payment.Event{}, fmt.Errorf("%w: %v", payment.ErrMalformedEnvelope, err)
	}
	if n.OrderID == "" || n.TransactionStatus == "" {
		return payment.Event{}, fmt.Errorf("%w: order_id and transaction_status are required", payment.ErrMalformedEnvelope)
	}

	want := strings.ToLower(n.SignatureKey)
	if want == "" || want != MidtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, d.serverKey) {
		return payment.Event{}, payment.ErrInvalidSignature
	}

	var typ payment.EventType
	switch strings.ToLower(n.TransactionStatus) {
	case "capture", "settlement":
		if strings.EqualFold(n.FraudStatus, "challenge") {
			return payment.Event{}, fmt.Errorf("%w: capture under fraud review", payment.ErrUnsupportedEvent)
		}
		typ = payment.EventCaptured
	case "deny", "cancel", "expire", "failure":
		typ = payment.EventDenied
	case "refund", "partial_refund":
		typ = payment.EventRefunded
	case "authorize":
		typ = payment.EventOrderApproved
	default:
		return payment.Event{}, fmt.Errorf("%w: %s", payment.ErrUnsupportedEvent, n.TransactionStatus)
	}

	occurred := time.Now().UTC()
	if ts, err := time.Parse("2006-01-02 15:04:05", n.TransactionTime); err == nil {
		occurred = ts.UTC()
	}

	return payment.Event{
		ID:         payment.EventID(MidtransProvider, n.TransactionID, n.OrderID, strings.ToLower(n.TransactionStatus)),
		Type:       typ,
		Provider:   MidtransProvider,
		ResourceID: n.TransactionID,
		OrderID:    n.OrderID,
		Status:     n.TransactionStatus,
		OccurredAt: occurred,
	}, nil
}
