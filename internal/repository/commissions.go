package repository

import (
	"context"
	"database/sql"
	"fmt"

	"teetime/internal/database"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"
)

type CommissionRepository struct {
	db *database.DB
}

func NewCommissionRepository(db *database.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// CreateCommission inserts at most one commission per booking.
func (r *CommissionRepository) CreateCommission(ctx context.Context, c *models.Commission) error {
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		INSERT INTO commissions (id, affiliate_id, booking_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (booking_id) DO NOTHING
		RETURNING id`,
		c.ID, c.AffiliateID, c.BookingID, c.Amount, c.Status, c.CreatedAt,
	).Scan(&c.ID)
	if err == sql.ErrNoRows {
		return apperrors.ErrDuplicateCommission
	}
	if err != nil {
		return fmt.Errorf("failed to create commission: %w", err)
	}
	return nil
}

func (r *CommissionRepository) CancelByBooking(ctx context.Context, bookingID string) (bool, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE commissions SET status = 'cancelled'
		WHERE booking_id = $1 AND status = 'pending'`, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel commission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CommissionRepository) GetByBooking(ctx context.Context, bookingID string) (*models.Commission, error) {
	c := &models.Commission{}
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, affiliate_id, booking_id, amount, status, created_at
		FROM commissions WHERE booking_id = $1`, bookingID,
	).Scan(&c.ID, &c.AffiliateID, &c.BookingID, &c.Amount, &c.Status, &c.CreatedAt)
	if err == sql.ErrNoRows || database.IsInvalidInput(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get commission: %w", err)
	}
	return c, nil
}
