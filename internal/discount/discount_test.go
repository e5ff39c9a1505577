package discount

import (
	"context"
	"errors"
	"testing"
	"time"

	"teetime/internal/clock"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(v int) *int { return &v }

func TestApplyPercentage(t *testing.T) {
	code := &models.DiscountCode{Code: "TEN", Type: models.DiscountPercentage, Value: dec("0.10")}

	got, err := Apply(code, dec("347.76"), now)
	require.NoError(t, err)
	assert.Equal(t, "312.98", got.StringFixed(2))
}

func TestApplyFixedAmount(t *testing.T) {
	code := &models.DiscountCode{Code: "FIFTY", Type: models.DiscountFixedAmount, Value: dec("50")}

	got, err := Apply(code, dec("347.76"), now)
	require.NoError(t, err)
	assert.Equal(t, "297.76", got.StringFixed(2))
}

func TestApplyFixedAmountFloorsAtZero(t *testing.T) {
	code := &models.DiscountCode{Code: "BIG", Type: models.DiscountFixedAmount, Value: dec("500")}

	got, err := Apply(code, dec("120"), now)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestApplyPercentageFloorsAtZero(t *testing.T) {
	// A whole-number percentage is rejected by the schema; Apply still never goes negative.
	code := &models.DiscountCode{Code: "BAD", Type: models.DiscountPercentage, Value: dec("10")}

	got, err := Apply(code, dec("347.76"), now)
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "got %s", got)
}

func TestApplyRulesInOrder(t *testing.T) {
	past := now.Add(-time.Hour)
	minValue := dec("400")

	cases := []struct {
		name string
		code *models.DiscountCode
		want error
	}{
		{"missing", nil, apperrors.ErrDiscountNotFound},
		{"expired", &models.DiscountCode{Type: models.DiscountPercentage, Value: dec("0.1"), ExpiresAt: &past}, apperrors.ErrDiscountExpired},
		{"expires exactly now", &models.DiscountCode{Type: models.DiscountPercentage, Value: dec("0.1"), ExpiresAt: &now}, apperrors.ErrDiscountExpired},
		{"exhausted", &models.DiscountCode{Type: models.DiscountPercentage, Value: dec("0.1"), MaxUses: intPtr(3), CurrentUses: 3}, apperrors.ErrDiscountExhausted},
		{"exhausted by reservations", &models.DiscountCode{Type: models.DiscountPercentage, Value: dec("0.1"), MaxUses: intPtr(3), CurrentUses: 1, ReservedUses: 2}, apperrors.ErrDiscountExhausted},
		{"below minimum", &models.DiscountCode{Type: models.DiscountPercentage, Value: dec("0.1"), MinBookingValue: &minValue}, apperrors.ErrDiscountBelowMinimum},
		// expiry is checked before the usage cap
		{"expired and exhausted", &models.DiscountCode{Type: models.DiscountPercentage, Value: dec("0.1"), ExpiresAt: &past, MaxUses: intPtr(1), CurrentUses: 1}, apperrors.ErrDiscountExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Apply(tc.code, dec("347.76"), now)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestApplyAtExactMinimum(t *testing.T) {
	minValue := dec("347.76")
	code := &models.DiscountCode{Type: models.DiscountFixedAmount, Value: dec("10"), MinBookingValue: &minValue, MaxUses: intPtr(5), CurrentUses: 4}

	got, err := Apply(code, dec("347.76"), now)
	require.NoError(t, err)
	assert.Equal(t, "337.76", got.StringFixed(2))
}

type mapStore map[string]*models.DiscountCode

func (m mapStore) FindByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	return m[code], nil
}

func TestResolverNormalizesAndDoesNotMutate(t *testing.T) {
	code := &models.DiscountCode{ID: "d1", Code: "SPRING10", Type: models.DiscountPercentage, Value: dec("0.10"), MaxUses: intPtr(10), CurrentUses: 2}
	r := NewResolver(mapStore{"SPRING10": code}, clock.NewFixed(now))

	dc, adjusted, err := r.Resolve(context.Background(), "  spring10 ", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "d1", dc.ID)
	assert.Equal(t, "90.00", adjusted.StringFixed(2))
	assert.Equal(t, 2, code.CurrentUses)
}

func TestResolverUnknownCode(t *testing.T) {
	r := NewResolver(mapStore{}, clock.NewFixed(now))

	_, _, err := r.Resolve(context.Background(), "NOPE", dec("100"))
	assert.True(t, errors.Is(err, apperrors.ErrDiscountNotFound))

	_, _, err = r.Resolve(context.Background(), "   ", dec("100"))
	assert.True(t, errors.Is(err, apperrors.ErrDiscountNotFound))
}
