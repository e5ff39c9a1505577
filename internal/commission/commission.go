package commission

import (
	"context"
	"errors"
	"fmt"

	"teetime/internal/clock"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"
	"teetime/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amount is round2(finalPrice × rate).
func Amount(finalPrice, rate decimal.Decimal) decimal.Decimal {
	return money.Round2(finalPrice.Mul(rate))
}

// Store persists commissions. Create must fail with ErrDuplicateCommission
// when a commission already exists for the booking.
type Store interface {
	CreateCommission(ctx context.Context, c *models.Commission) error
	CancelByBooking(ctx context.Context, bookingID string) (bool, error)
}

type Attributor struct {
	store Store
	clock clock.Clock
}

func NewAttributor(store Store, clk clock.Clock) *Attributor {
	return &Attributor{store: store, clock: clk}
}

// Attribute records a pending commission for bookingID.
func (a *Attributor) Attribute(ctx context.Context, affiliate models.Affiliate, finalPrice decimal.Decimal, bookingID string) (models.Commission, error) {
	if affiliate.CommissionRate.IsNegative() || affiliate.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return models.Commission{}, fmt.Errorf("affiliate %s has commission rate %s outside [0,1]", affiliate.ID, affiliate.CommissionRate)
	}

	c := models.Commission{
		ID:          uuid.NewString(),
		AffiliateID: affiliate.ID,
		BookingID:   bookingID,
		Amount:      Amount(finalPrice, affiliate.CommissionRate),
		Status:      models.CommissionPending,
		CreatedAt:   a.clock.Now(),
	}

	if err := a.store.CreateCommission(ctx, &c); err != nil {
		if errors.Is(err, apperrors.ErrDuplicateCommission) {
			return models.Commission{}, err
		}
		return models.Commission{}, fmt.Errorf("failed to create commission: %w", err)
	}
	return c, nil
}

// Cancel voids the pending commission for bookingID. Paid commissions are left alone.
func (a *Attributor) Cancel(ctx context.Context, bookingID string) (bool, error) {
	cancelled, err := a.store.CancelByBooking(ctx, bookingID)
	if err != nil {
		return false, fmt.Errorf("failed to cancel commission: %w", err)
	}
	return cancelled, nil
}
