package pricing

import (
	"context"
	"fmt"
	"time"

	"teetime/internal/clock"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"
	"teetime/internal/money"

	"github.com/shopspring/decimal"
)

var (
	factor085 = decimal.RequireFromString("0.85")
	factor080 = decimal.RequireFromString("0.8")
	factor090 = decimal.RequireFromString("0.9")
	factor095 = decimal.RequireFromString("0.95")
	factor100 = decimal.NewFromInt(1)
	factor110 = decimal.RequireFromString("1.1")
	factor115 = decimal.RequireFromString("1.15")
	factor120 = decimal.RequireFromString("1.2")
	factor130 = decimal.RequireFromString("1.3")
)

// SeasonFactor: winter months are peak, summer months are off-peak.
func SeasonFactor(m time.Month) decimal.Decimal {
	switch m {
	case time.December, time.January, time.February:
		return factor120
	case time.June, time.July, time.August:
		return factor080
	default:
		return factor100
	}
}

// DemandFactor scales by the number of pending and confirmed bookings for the course on that date.
// Zero bookings carries no demand signal and prices at 1.0.
func DemandFactor(reservations int) decimal.Decimal {
	switch {
	case reservations >= 20:
		return factor130
	case reservations >= 10:
		return factor110
	case reservations == 0:
		return factor100
	case reservations <= 3:
		return factor090
	default:
		return factor100
	}
}

// TimeFactor prices midday rounds up, early and late rounds down.
func TimeFactor(hour int) decimal.Decimal {
	switch {
	case hour >= 10 && hour <= 14:
		return factor115
	case hour >= 6 && hour <= 8:
		return factor090
	case hour >= 16:
		return factor085
	default:
		return factor100
	}
}

// AdvanceFactor rewards early booking and charges a premium inside 24 hours.
func AdvanceFactor(days int) decimal.Decimal {
	switch {
	case days >= 14:
		return factor090
	case days >= 7:
		return factor095
	case days <= 1:
		return factor110
	default:
		return factor100
	}
}

// DaysUntil counts whole calendar days between now's date (in loc) and the play date.
func DaysUntil(playDate time.Time, now time.Time, loc *time.Location) int {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	play := time.Date(playDate.Year(), playDate.Month(), playDate.Day(), 0, 0, 0, 0, time.UTC)
	return int(play.Sub(today).Hours() / 24)
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// BasePrice picks the weekday or weekend rate for the play date.
func BasePrice(course models.Course, playDate time.Time) decimal.Decimal {
	if IsWeekend(playDate) {
		return course.WeekendPrice
	}
	return course.WeekdayPrice
}

// Input is everything Compute needs; it does no I/O.
type Input struct {
	Course  models.Course
	Date    time.Time
	Hour    int
	Players int
	Demand  int
	Now     time.Time
}

// Compute builds a price quote. finalPricePerPlayer = round2(base × season × demand × time × advance).
func Compute(in Input) models.PriceQuote {
	base := BasePrice(in.Course, in.Date)
	days := DaysUntil(in.Date, in.Now, in.Course.TimeLocation())

	q := models.PriceQuote{
		BasePrice:     base,
		SeasonFactor:  SeasonFactor(in.Date.Month()),
		DemandFactor:  DemandFactor(in.Demand),
		TimeFactor:    TimeFactor(in.Hour),
		AdvanceFactor: AdvanceFactor(days),
		Players:       in.Players,
		DemandCount:   in.Demand,
		DaysInAdvance: days,
		Weekend:       IsWeekend(in.Date),
	}

	perPlayer := base.
		Mul(q.SeasonFactor).
		Mul(q.DemandFactor).
		Mul(q.TimeFactor).
		Mul(q.AdvanceFactor)

	q.FinalPricePerPlayer = money.Round2(perPlayer)
	q.TotalPrice = q.FinalPricePerPlayer.Mul(decimal.NewFromInt(int64(in.Players)))
	return q
}

// DemandCounter reports how many pending or confirmed bookings a course has on a date.
type DemandCounter interface {
	CountActiveBookings(ctx context.Context, courseID, date string) (int, error)
}

// Calculator quotes prices against live demand. It never mutates state.
type Calculator struct {
	demand DemandCounter
	clock  clock.Clock
}

func NewCalculator(demand DemandCounter, clk clock.Clock) *Calculator {
	return &Calculator{demand: demand, clock: clk}
}

// Quote prices players on the tee time at date/startTime for course.
func (c *Calculator) Quote(ctx context.Context, course models.Course, date, startTime string, players int) (models.PriceQuote, error) {
	if players < 1 {
		return models.PriceQuote{}, apperrors.Validation("players", "must be at least 1")
	}
	playDate, err := models.ParseDate(date)
	if err != nil {
		return models.PriceQuote{}, err
	}
	hour, _, err := models.ParseClock(startTime)
	if err != nil {
		return models.PriceQuote{}, err
	}

	now := c.clock.Now()
	if DaysUntil(playDate, now, course.TimeLocation()) < 0 {
		return models.PriceQuote{}, apperrors.Validation("date", "must not be in the past")
	}

	demand, err := c.demand.CountActiveBookings(ctx, course.ID, date)
	if err != nil {
		return models.PriceQuote{}, fmt.Errorf("failed to count demand: %w", err)
	}

	return Compute(Input{
		Course:  course,
		Date:    playDate,
		Hour:    hour,
		Players: players,
		Demand:  demand,
		Now:     now,
	}), nil
}
