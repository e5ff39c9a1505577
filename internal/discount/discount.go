package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"teetime/internal/clock"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"
	"teetime/internal/money"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Apply validates code against total at now and returns the adjusted price.
// Rules run in order: existence, expiry, usage cap, minimum booking value.
func Apply(code *models.DiscountCode, total decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if code == nil {
		return decimal.Zero, apperrors.ErrDiscountNotFound
	}
	if code.ExpiresAt != nil && !now.Before(*code.ExpiresAt) {
		return decimal.Zero, apperrors.ErrDiscountExpired
	}
	if code.MaxUses != nil && code.CurrentUses+code.ReservedUses >= *code.MaxUses {
		return decimal.Zero, apperrors.ErrDiscountExhausted
	}
	if code.MinBookingValue != nil && total.LessThan(*code.MinBookingValue) {
		return decimal.Zero, apperrors.ErrDiscountBelowMinimum
	}

	switch code.Type {
	case models.DiscountPercentage:
		return money.Max(money.Round2(total.Mul(one.Sub(code.Value))), decimal.Zero), nil
	case models.DiscountFixedAmount:
		return money.Max(money.Round2(total.Sub(code.Value)), decimal.Zero), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown discount type %q", code.Type)
	}
}

// Store looks up discount codes by their code string.
type Store interface {
	FindByCode(ctx context.Context, code string) (*models.DiscountCode, error)
}

// Resolver resolves a code and applies it. It never changes usage counters;
// the caller reserves a use against its hold and redeems it inside the booking commit.
type Resolver struct {
	store Store
	clock clock.Clock
}

func NewResolver(store Store, clk clock.Clock) *Resolver {
	return &Resolver{store: store, clock: clk}
}

// Resolve looks up code and returns it together with the adjusted total.
func (r *Resolver) Resolve(ctx context.Context, code string, total decimal.Decimal) (*models.DiscountCode, decimal.Decimal, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return nil, decimal.Zero, apperrors.ErrDiscountNotFound
	}

	dc, err := r.store.FindByCode(ctx, normalized)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to find discount code: %w", err)
	}

	adjusted, err := Apply(dc, total, r.clock.Now())
	if err != nil {
		return nil, decimal.Zero, err
	}
	return dc, adjusted, nil
}

// Normalize trims and upper-cases a code as stored.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
