package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"teetime/internal/money"
	"teetime/internal/payment"
)

const HubProvider = "hub"

type HubConfig struct {
	BaseURL  string
	TeamSlug string
	Password string
	Timeout  time.Duration
}

// HubGateway talks to the token-signed payment hub: init, confirm, check, cancel.
type HubGateway struct {
	baseURL    string
	teamSlug   string
	password   string
	httpClient *http.Client
}

// Payment hub models
type hubInitRequest struct {
	TeamSlug    string `json:"teamSlug"`
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"`
}

type hubInitResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Message   string `json:"message"`
}

type hubCheckRequest struct {
	TeamSlug  string `json:"teamSlug"`
	Token     string `json:"token"`
	PaymentID string `json:"paymentId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

type hubCheckResponse struct {
	Success  bool         `json:"success"`
	Payments []HubPayment `json:"payments"`
	OrderID  string       `json:"orderId"`
}

type HubPayment struct {
	PaymentID         string `json:"paymentId"`
	OrderID           string `json:"orderId"`
	Status            string `json:"status"`
	StatusDescription string `json:"statusDescription"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
}

type hubStatusResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func NewHubGateway(cfg HubConfig) *HubGateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HubGateway{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		teamSlug: cfg.TeamSlug,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (g *HubGateway) Name() string { return HubProvider }

func (g *HubGateway) generateToken(params map[string]string) string {
	params["TeamSlug"] = g.teamSlug
	params["Password"] = g.password

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(params[key])
	}

	hash := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(hash[:])
}

// post sends a signed request; transport failures come back as payment.ErrTimeout or payment.ErrUnavailable.
func (g *HubGateway) post(ctx context.Context, path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if payment.IsTimeout(err) {
			return fmt.Errorf("%w: %v", payment.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", payment.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", payment.ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Check returns the payments registered under orderID.
func (g *HubGateway) Check(ctx context.Context, orderID string) ([]HubPayment, error) {
	req := hubCheckRequest{
		TeamSlug: g.teamSlug,
		Token:    g.generateToken(map[string]string{"OrderId": orderID}),
		OrderID:  orderID,
	}

	var result hubCheckResponse
	if err := g.post(ctx, "/api/v1/PaymentCheck/check", req, &result); err != nil {
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	return result.Payments, nil
}

func (g *HubGateway) initPayment(ctx context.Context, amount int64, orderID, currency, description string) (*hubInitResponse, error) {
	params := map[string]string{
		"Amount":   strconv.FormatInt(amount, 10),
		"Currency": currency,
		"OrderId":  orderID,
	}
	req := hubInitRequest{
		TeamSlug:    g.teamSlug,
		Token:       g.generateToken(params),
		Amount:      amount,
		OrderID:     orderID,
		Currency:    currency,
		Description: description,
		Language:    "en",
	}

	var result hubInitResponse
	if err := g.post(ctx, "/api/v1/PaymentInit/init", req, &result); err != nil {
		return nil, fmt.Errorf("failed to init payment: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: payment init rejected: %s", payment.ErrUnavailable, result.Message)
	}
	return &result, nil
}

func (g *HubGateway) confirmPayment(ctx context.Context, paymentID string, amount int64) (*hubStatusResponse, error) {
	params := map[string]string{
		"Amount":    strconv.FormatInt(amount, 10),
		"PaymentId": paymentID,
	}
	reqData := map[string]interface{}{
		"teamSlug":  g.teamSlug,
		"token":     g.generateToken(params),
		"paymentId": paymentID,
		"amount":    amount,
	}

	var result hubStatusResponse
	if err := g.post(ctx, "/api/v1/PaymentConfirm/confirm", reqData, &result); err != nil {
		return nil, fmt.Errorf("failed to confirm payment: %w", err)
	}
	return &result, nil
}

func (g *HubGateway) cancelPayment(ctx context.Context, paymentID, reason string) (*hubStatusResponse, error) {
	reqData := map[string]interface{}{
		"teamSlug":  g.teamSlug,
		"token":     g.generateToken(map[string]string{"PaymentId": paymentID}),
		"paymentId": paymentID,
		"reason":    reason,
	}

	var result hubStatusResponse
	if err := g.post(ctx, "/api/v1/PaymentCancel/cancel", reqData, &result); err != nil {
		return nil, fmt.Errorf("failed to cancel payment: %w", err)
	}
	return &result, nil
}

// HubCaptureStatus maps a hub payment status onto a capture outcome.
func HubCaptureStatus(status string) payment.CaptureStatus {
	switch strings.ToUpper(status) {
	case "CONFIRMED":
		return payment.CaptureSucceeded
	case "REJECTED", "CANCELLED", "DEADLINE_EXPIRED", "REFUNDED":
		return payment.CaptureFailed
	default:
		return payment.CapturePending
	}
}

// Capture checks the order first so a retried attempt never charges twice, then inits and confirms.
func (g *HubGateway) Capture(ctx context.Context, req payment.CaptureRequest) (payment.CaptureResult, error) {
	amount := money.ToMinor(req.Amount)

	existing, err := g.Check(ctx, req.OrderID)
	if err != nil {
		return payment.CaptureResult{}, err
	}

	var paymentID string
	for _, p := range existing {
		switch HubCaptureStatus(p.Status) {
		case payment.CaptureSucceeded:
			return payment.CaptureResult{CaptureID: p.PaymentID, OrderID: req.OrderID, Status: payment.CaptureSucceeded}, nil
		case payment.CapturePending:
			paymentID = p.PaymentID
		}
	}

	if paymentID == "" {
		initResp, err := g.initPayment(ctx, amount, req.OrderID, req.Currency, req.Description)
		if err != nil {
			return payment.CaptureResult{}, err
		}
		paymentID = initResp.PaymentID
	}

	confirmResp, err := g.confirmPayment(ctx, paymentID, amount)
	if err != nil {
		return payment.CaptureResult{}, err
	}

	result := payment.CaptureResult{
		CaptureID: paymentID,
		OrderID:   req.OrderID,
		Status:    HubCaptureStatus(confirmResp.Status),
	}
	if !confirmResp.Success && result.Status == payment.CapturePending {
		result.Status = payment.CaptureFailed
	}
	if result.Status == payment.CaptureFailed {
		result.Reason = confirmResp.Message
	}
	return result, nil
}

// Refund cancels the confirmed hub payment. The hub has no partial refunds.
func (g *HubGateway) Refund(ctx context.Context, req payment.RefundRequest) (payment.RefundResult, error) {
	if req.CaptureID == "" {
		return payment.RefundResult{}, errors.New("capture id is required")
	}
	resp, err := g.cancelPayment(ctx, req.CaptureID, req.Reason)
	if err != nil {
		return payment.RefundResult{}, err
	}
	if !resp.Success {
		return payment.RefundResult{}, fmt.Errorf("refund rejected: %s", resp.Message)
	}
	return payment.RefundResult{RefundID: resp.PaymentID, Status: resp.Status}, nil
}

// hubNotification is the webhook body the hub posts on status changes.
type hubNotification struct {
	PaymentID string                 `json:"paymentId"`
	Status    string                 `json:"status"`
	TeamSlug  string                 `json:"teamSlug"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// HubWebhookDecoder decodes hub notifications, rejecting ones for another team.
type HubWebhookDecoder struct {
	teamSlug string
}

func NewHubWebhookDecoder(teamSlug string) *HubWebhookDecoder {
	return &HubWebhookDecoder{teamSlug: teamSlug}
}

func (d *HubWebhookDecoder) Provider() string { return HubProvider }

func (d *HubWebhookDecoder) Decode(header http.Header, body []byte) (payment.Event, error) {
	var n hubNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return payment.Event{}, fmt.Errorf("%w: %v", payment.ErrMalformedEnvelope, err)
	}
	if n.PaymentID == "" || n.Status == "" {
		return payment.Event{}, fmt.Errorf("%w: paymentId and status are required", payment.ErrMalformedEnvelope)
	}
	if d.teamSlug != "" && n.TeamSlug != d.teamSlug {
		return payment.Event{}, payment.ErrInvalidSignature
	}

	var typ payment.EventType
	switch strings.ToUpper(n.Status) {
	case "CONFIRMED":
		typ = payment.EventCaptured
	case "REJECTED", "CANCELLED", "DEADLINE_EXPIRED":
		typ = payment.EventDenied
	case "REFUNDED":
		typ = payment.EventRefunded
	case "AUTHORIZED":
		typ = payment.EventOrderApproved
	default:
		return payment.Event{}, fmt.Errorf("%w: %s", payment.ErrUnsupportedEvent, n.Status)
	}

	orderID, _ := n.Data["orderId"].(string)
	occurred := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, n.Timestamp); err == nil {
		occurred = ts.UTC()
	}

	return payment.Event{
		ID:         payment.EventID(HubProvider, n.PaymentID, strings.ToUpper(n.Status), n.Timestamp),
		Type:       typ,
		Provider:   HubProvider,
		ResourceID: n.PaymentID,
		OrderID:    orderID,
		Status:     n.Status,
		OccurredAt: occurred,
	}, nil
}
