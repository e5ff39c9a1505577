package repository

import (
	"context"
	"database/sql"
	"fmt"

	"teetime/internal/database"
	"teetime/internal/models"

	"github.com/lib/pq"
)

type PaymentRepository struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `gateway_order_id, provider, capture_id, amount, currency, status, booking_id, idempotency_key, created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*models.PaymentRecord, error) {
	p := &models.PaymentRecord{}
	var bookingID sql.NullString
	err := row.Scan(
		&p.GatewayOrderID,
		&p.Provider,
		&p.CaptureID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&bookingID,
		&p.IdempotencyKey,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if bookingID.Valid {
		p.BookingID = &bookingID.String
	}
	return p, nil
}

// Create records a capture attempt before the gateway is called. Existing records are kept.
func (r *PaymentRepository) Create(ctx context.Context, p *models.PaymentRecord) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO payment_records (gateway_order_id, provider, capture_id, amount, currency, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (gateway_order_id) DO NOTHING`,
		p.GatewayOrderID, p.Provider, p.CaptureID, p.Amount, p.Currency, p.Status, p.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentRecord, error) {
	p, err := scanPayment(r.db.Conn(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_records WHERE gateway_order_id = $1`, orderID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) GetByCaptureID(ctx context.Context, captureID string) (*models.PaymentRecord, error) {
	p, err := scanPayment(r.db.Conn(ctx).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_records WHERE capture_id = $1 AND capture_id <> ''`, captureID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment record by capture: %w", err)
	}
	return p, nil
}

// RecordCapture stores the gateway's answer for an order.
func (r *PaymentRepository) RecordCapture(ctx context.Context, orderID, captureID string, status models.PaymentStatus) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE payment_records
		SET capture_id = CASE WHEN $2::text = '' THEN capture_id ELSE $2::text END, status = $3, updated_at = NOW()
		WHERE gateway_order_id = $1`, orderID, captureID, status)
	if err != nil {
		return fmt.Errorf("failed to record capture: %w", err)
	}
	return nil
}

// UpdateStatus moves a record to status only from one of the listed statuses.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, orderID string, to models.PaymentStatus, from ...models.PaymentStatus) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE payment_records SET status = $2, updated_at = NOW()
		WHERE gateway_order_id = $1 AND status = ANY($3)`,
		orderID, to, pq.Array(allowed))
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PaymentRepository) LinkBooking(ctx context.Context, orderID, bookingID string) error {
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE payment_records SET booking_id = $2, updated_at = NOW()
		WHERE gateway_order_id = $1`, orderID, bookingID)
	if err != nil {
		return fmt.Errorf("failed to link payment to booking: %w", err)
	}
	return nil
}
