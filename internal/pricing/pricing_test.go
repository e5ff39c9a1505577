package pricing

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

type staticDemand struct {
	count int
	err   error
	calls int
}

func (d *staticDemand) CountActiveBookings(ctx context.Context, courseID, date string) (int, error) {
	d.calls++
	return d.count, d.err
}

func testCourse() models.Course {
	return models.Course{
		ID:           "course-1",
		Slug:         "pebble-creek",
		WeekdayPrice: decimal.NewFromInt(140),
		WeekendPrice: decimal.NewFromInt(180),
		Currency:     "USD",
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuoteReferenceScenario(t *testing.T) {
	calc := NewCalculator(&staticDemand{}, clock.NewFixed(time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)))

	q, err := calc.Quote(context.Background(), testCourse(), "2025-01-10", "11:00", 2)
	require.NoError(t, err)

	assert.True(t, q.BasePrice.Equal(dec("140")))
	assert.True(t, q.SeasonFactor.Equal(dec("1.2")))
	assert.True(t, q.DemandFactor.Equal(dec("1.0")))
	assert.True(t, q.TimeFactor.Equal(dec("1.15")))
	assert.True(t, q.AdvanceFactor.Equal(dec("0.9")))
	assert.Equal(t, 40, q.DaysInAdvance)
	assert.Equal(t, "173.88", q.FinalPricePerPlayer.StringFixed(2))
	assert.Equal(t, "347.76", q.TotalPrice.StringFixed(2))
	assert.False(t, q.Weekend)
}

func TestQuoteUsesWeekendRate(t *testing.T) {
	calc := NewCalculator(&staticDemand{count: 5}, clock.NewFixed(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))

	// 2025-03-08 is a Saturday, 7 days out, 09:00 carries no time factor.
	q, err := calc.Quote(context.Background(), testCourse(), "2025-03-08", "09:00", 1)
	require.NoError(t, err)

	assert.True(t, q.Weekend)
	assert.True(t, q.BasePrice.Equal(dec("180")))
	assert.Equal(t, "171.00", q.FinalPricePerPlayer.StringFixed(2))
}

func TestQuoteRejectsBadInput(t *testing.T) {
	calc := NewCalculator(&staticDemand{}, clock.NewFixed(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))

	cases := []struct {
		name    string
		date    string
		start   string
		players int
	}{
		{"zero players", "2025-03-10", "10:00", 0},
		{"bad date", "03/10/2025", "10:00", 1},
		{"bad time", "2025-03-10", "10am", 1},
		{"past date", "2025-02-27", "10:00", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.Quote(context.Background(), testCourse(), tc.date, tc.start, tc.players)
			assert.True(t, errors.Is(err, apperrors.ErrValidation))
		})
	}
}

func TestQuoteDoesNotHideDemandErrors(t *testing.T) {
	demand := &staticDemand{err: errors.New("db down")}
	calc := NewCalculator(demand, clock.NewFixed(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))

	_, err := calc.Quote(context.Background(), testCourse(), "2025-03-10", "10:00", 1)
	assert.Error(t, err)
	assert.Equal(t, 1, demand.calls)
}

func TestSeasonFactor(t *testing.T) {
	for _, m := range []time.Month{time.December, time.January, time.February} {
		assert.True(t, SeasonFactor(m).Equal(dec("1.2")), m.String())
	}
	for _, m := range []time.Month{time.June, time.July, time.August} {
		assert.True(t, SeasonFactor(m).Equal(dec("0.8")), m.String())
	}
	for _, m := range []time.Month{time.March, time.May, time.September, time.November} {
		assert.True(t, SeasonFactor(m).Equal(dec("1")), m.String())
	}
}

func TestDemandFactor(t *testing.T) {
	cases := map[int]string{0: "1", 1: "0.9", 3: "0.9", 4: "1", 9: "1", 10: "1.1", 19: "1.1", 20: "1.3", 55: "1.3"}
	for count, want := range cases {
		assert.True(t, DemandFactor(count).Equal(dec(want)), "demand %d", count)
	}
}

func TestTimeFactor(t *testing.T) {
	cases := map[int]string{5: "1", 6: "0.9", 8: "0.9", 9: "1", 10: "1.15", 14: "1.15", 15: "1", 16: "0.85", 19: "0.85"}
	for hour, want := range cases {
		assert.True(t, TimeFactor(hour).Equal(dec(want)), "hour %d", hour)
	}
}

func TestAdvanceFactor(t *testing.T) {
	cases := map[int]string{0: "1.1", 1: "1.1", 2: "1", 6: "1", 7: "0.95", 13: "0.95", 14: "0.9", 90: "0.9"}
	for days, want := range cases {
		assert.True(t, AdvanceFactor(days).Equal(dec(want)), "days %d", days)
	}
}

func TestDaysUntilUsesCourseTimezone(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	// 03:00 UTC on March 2nd is still March 1st at the course.
	now := time.Date(2025, 3, 2, 3, 0, 0, 0, time.UTC)
	play := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, DaysUntil(play, now, loc))
	assert.Equal(t, 0, DaysUntil(play, now, time.UTC))
}

func TestComputeIsDeterministic(t *testing.T) {
	in := Input{
		Course:  testCourse(),
		Date:    time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC),
		Hour:    17,
		Players: 4,
		Demand:  12,
		Now:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	a := Compute(in)
	b := Compute(in)

	assert.True(t, a.TotalPrice.Equal(b.TotalPrice))
	assert.True(t, a.FinalPricePerPlayer.Equal(b.FinalPricePerPlayer))
	// 140 × 0.8 × 1.1 × 0.85 × 0.9 = 94.248
	assert.Equal(t, "94.25", a.FinalPricePerPlayer.StringFixed(2))
	assert.Equal(t, "377.00", a.TotalPrice.StringFixed(2))
}
