package repository

import (
	"context"
	"database/sql"
	"fmt"

	"teetime/internal/database"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"

	"github.com/lib/pq"
)

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, course_id, to_char(play_date, 'YYYY-MM-DD'), start_time, players, total_price, currency,
	discount_code_id, affiliate_id, status, payment_ref, gateway_order_id, idempotency_key, request_fingerprint,
	created_at, updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*models.Booking, error) {
	b := &models.Booking{}
	var discountID, affiliateID sql.NullString
	err := row.Scan(
		&b.ID,
		&b.Slot.CourseID,
		&b.Slot.Date,
		&b.Slot.StartTime,
		&b.Players,
		&b.TotalPrice,
		&b.Currency,
		&discountID,
		&affiliateID,
		&b.Status,
		&b.PaymentRef,
		&b.GatewayOrderID,
		&b.IdempotencyKey,
		&b.RequestFingerprint,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if discountID.Valid {
		b.DiscountCodeID = &discountID.String
	}
	if affiliateID.Valid {
		b.AffiliateID = &affiliateID.String
	}
	return b, nil
}

// Create inserts a booking and reports whether a row was written. Inserting
// the same booking again loads the stored row into booking and returns false;
// another booking under the same idempotency key is ErrIdempotencyConflict.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) (bool, error) {
	query := `
		INSERT INTO bookings (id, course_id, play_date, start_time, players, total_price, currency,
		                      discount_code_id, affiliate_id, status, payment_ref, gateway_order_id,
		                      idempotency_key, request_fingerprint)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT DO NOTHING
		RETURNING created_at, updated_at`

	err := r.db.Conn(ctx).QueryRowContext(ctx, query,
		booking.ID,
		booking.Slot.CourseID,
		booking.Slot.Date,
		booking.Slot.StartTime,
		booking.Players,
		booking.TotalPrice,
		booking.Currency,
		booking.DiscountCodeID,
		booking.AffiliateID,
		booking.Status,
		booking.PaymentRef,
		booking.GatewayOrderID,
		booking.IdempotencyKey,
		booking.RequestFingerprint,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to create booking: %w", err)
	}

	existing, err := r.GetByIdempotencyKey(ctx, booking.IdempotencyKey)
	if err != nil {
		return false, err
	}
	if existing == nil || existing.ID != booking.ID {
		return false, apperrors.ErrIdempotencyConflict
	}
	*booking = *existing
	return false, nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows || database.IsInvalidInput(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Booking, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE idempotency_key = $1`, key)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by idempotency key: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE gateway_order_id = $1`, orderID)
	b, err := scanBooking(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking by order: %w", err)
	}
	return b, nil
}

// UpdateStatus moves a booking to status only if it is currently in one of from.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, to models.BookingStatus, from ...models.BookingStatus) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE bookings SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`,
		id, to, pq.Array(allowed))
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountActiveBookings counts pending and confirmed bookings on a course for a play date.
func (r *BookingRepository) CountActiveBookings(ctx context.Context, courseID, date string) (int, error) {
	var count int
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE course_id = $1 AND play_date = $2 AND status IN ('pending', 'confirmed')`,
		courseID, date,
	).Scan(&count)
	if err != nil {
		if database.IsInvalidInput(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}
