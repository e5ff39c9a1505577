package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"teetime/internal/database"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountRepository struct {
	db *database.DB
}

func NewDiscountRepository(db *database.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

func (r *DiscountRepository) Create(ctx context.Context, code *models.DiscountCode) error {
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO discount_codes (id, code, discount_type, value, expires_at, max_uses, current_uses, min_booking_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		code.ID, code.Code, code.Type, code.Value, code.ExpiresAt, code.MaxUses, code.CurrentUses, code.MinBookingValue)
	if err != nil {
		return fmt.Errorf("failed to create discount code: %w", err)
	}
	return nil
}

func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	d := &models.DiscountCode{}
	var expiresAt sql.NullTime
	var maxUses sql.NullInt64
	var minValue decimal.NullDecimal

	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, code, discount_type, value, expires_at, max_uses, current_uses, reserved_uses, min_booking_value
		FROM discount_codes WHERE code = $1`, code,
	).Scan(&d.ID, &d.Code, &d.Type, &d.Value, &expiresAt, &maxUses, &d.CurrentUses, &d.ReservedUses, &minValue)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find discount code: %w", err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		d.ExpiresAt = &t
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		d.MaxUses = &n
	}
	if minValue.Valid {
		v := minValue.Decimal
		d.MinBookingValue = &v
	}
	return d, nil
}

// Reserve claims one use of a code for a hold. Admission is a guarded UPDATE
// on the code row, so current_uses + reserved_uses never exceeds max_uses.
func (r *DiscountRepository) Reserve(ctx context.Context, codeID, holdToken string, expiresAt time.Time) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		res, err := r.db.Conn(ctx).ExecContext(ctx, `
			UPDATE discount_codes SET reserved_uses = reserved_uses + 1
			WHERE id = $1 AND (max_uses IS NULL OR current_uses + reserved_uses < max_uses)`, codeID)
		if err != nil {
			return fmt.Errorf("failed to reserve discount use: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.ErrDiscountExhausted
		}

		_, err = r.db.Conn(ctx).ExecContext(ctx, `
			INSERT INTO discount_reservations (hold_token, discount_code_id, status, expires_at)
			VALUES ($1, $2, 'reserved', $3)`, holdToken, codeID, expiresAt)
		if err != nil {
			return fmt.Errorf("failed to create discount reservation: %w", err)
		}
		return nil
	})
}

// ReleaseReservation gives back the use reserved for a hold. Releasing a
// released or redeemed reservation is a no-op.
func (r *DiscountRepository) ReleaseReservation(ctx context.Context, holdToken string) error {
	if _, err := uuid.Parse(holdToken); err != nil {
		return nil
	}
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		WITH released AS (
			UPDATE discount_reservations SET status = 'released'
			WHERE hold_token = $1 AND status = 'reserved'
			RETURNING discount_code_id
		)
		UPDATE discount_codes d SET reserved_uses = d.reserved_uses - 1
		FROM released r WHERE d.id = r.discount_code_id`, holdToken)
	if err != nil {
		return fmt.Errorf("failed to release discount reservation: %w", err)
	}
	return nil
}

// ReleaseExpiredReservations releases reservations whose hold expired at or before now.
func (r *DiscountRepository) ReleaseExpiredReservations(ctx context.Context, now time.Time) (int, error) {
	query := `
		WITH expired AS (
			UPDATE discount_reservations SET status = 'released'
			WHERE status = 'reserved' AND expires_at <= $1
			RETURNING discount_code_id
		), totals AS (
			SELECT discount_code_id, COUNT(*) AS n FROM expired GROUP BY discount_code_id
		), returned AS (
			UPDATE discount_codes d SET reserved_uses = d.reserved_uses - t.n
			FROM totals t WHERE d.id = t.discount_code_id
			RETURNING 1
		)
		SELECT COUNT(*) FROM expired`

	var released int
	if err := r.db.Conn(ctx).QueryRowContext(ctx, query, now).Scan(&released); err != nil {
		return 0, fmt.Errorf("failed to release expired discount reservations: %w", err)
	}
	return released, nil
}

// Redeem turns the reservation held by holdToken into a counted use by
// bookingID. Redeeming twice is a no-op. A reservation already released by the
// reaper is redeemed only if the cap still has room; otherwise
// ErrDiscountExhausted is returned and nothing changes.
func (r *DiscountRepository) Redeem(ctx context.Context, holdToken, bookingID string) error {
	if _, err := uuid.Parse(holdToken); err != nil {
		return fmt.Errorf("no discount reservation for hold %q", holdToken)
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		var codeID, status string
		err := r.db.Conn(ctx).QueryRowContext(ctx, `
			SELECT discount_code_id, status FROM discount_reservations
			WHERE hold_token = $1 FOR UPDATE`, holdToken,
		).Scan(&codeID, &status)
		if err == sql.ErrNoRows {
			return fmt.Errorf("no discount reservation for hold %q", holdToken)
		}
		if err != nil {
			return fmt.Errorf("failed to load discount reservation: %w", err)
		}

		var query string
		switch status {
		case "redeemed":
			return nil
		case "reserved":
			query = `
				UPDATE discount_codes SET reserved_uses = reserved_uses - 1, current_uses = current_uses + 1
				WHERE id = $1`
		default:
			query = `
				UPDATE discount_codes SET current_uses = current_uses + 1
				WHERE id = $1 AND (max_uses IS NULL OR current_uses + reserved_uses < max_uses)`
		}
		res, err := r.db.Conn(ctx).ExecContext(ctx, query, codeID)
		if err != nil {
			return fmt.Errorf("failed to increment discount usage: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.ErrDiscountExhausted
		}

		if _, err := r.db.Conn(ctx).ExecContext(ctx,
			`UPDATE discount_reservations SET status = 'redeemed' WHERE hold_token = $1`, holdToken); err != nil {
			return fmt.Errorf("failed to mark discount reservation redeemed: %w", err)
		}
		if _, err := r.db.Conn(ctx).ExecContext(ctx, `
			INSERT INTO discount_redemptions (booking_id, discount_code_id)
			VALUES ($1, $2)
			ON CONFLICT (booking_id) DO NOTHING`, bookingID, codeID); err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}
		return nil
	})
}
