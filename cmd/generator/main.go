package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"teetime/internal/clock"
	"teetime/internal/config"
	"teetime/internal/database"
	"teetime/internal/logger"
	"teetime/internal/models"
	"teetime/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	days          = flag.Int("days", 14, "Number of days ahead to generate tee times for, starting today")
	interval      = flag.Duration("interval", 10*time.Minute, "Gap between consecutive tee times")
	capacity      = flag.Int("capacity", 4, "Players per tee time")
	firstTee      = flag.String("first", "07:00", "First tee time of the day (HH:MM, course local time)")
	lastTee       = flag.String("last", "16:00", "Last tee time of the day (HH:MM, course local time)")
	courseSlug    = flag.String("course", "", "Generate slots only for this course slug (empty = all courses)")
	dryRun        = flag.Bool("dry-run", false, "Show what would be generated without making changes")
	clearExisting = flag.Bool("clear", false, "Truncate every table and load the demo catalogue before generating")
	demo          = flag.Bool("demo", false, "Load demo courses, discount codes and affiliates")
)

type SlotGenerator struct {
	repos *repository.Repositories
	clock clock.Clock
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Starting slot generator...")

	ctx := context.Background()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	clk := clock.NewSystem()
	generator := &SlotGenerator{repos: repository.NewRepositories(db, clk), clock: clk}

	if *clearExisting && !*dryRun {
		slog.Warn("Clearing all data")
		if err := db.Truncate(ctx); err != nil {
			slog.Error("Failed to clear data", "error", err)
			os.Exit(1)
		}
	}

	if (*demo || *clearExisting) && !*dryRun {
		if err := generator.LoadDemoCatalogue(ctx); err != nil {
			slog.Error("Failed to load demo catalogue", "error", err)
			os.Exit(1)
		}
	}

	if err := generator.GenerateSlots(ctx); err != nil {
		slog.Error("Failed to generate slots", "error", err)
		os.Exit(1)
	}

	slog.Info("Slot generation completed successfully!")
}

func (g *SlotGenerator) GenerateSlots(ctx context.Context) error {
	times, err := teeTimes(*firstTee, *lastTee, *interval)
	if err != nil {
		return err
	}

	courses, err := g.coursesForGeneration(ctx)
	if err != nil {
		return fmt.Errorf("failed to get courses: %w", err)
	}

	if len(courses) == 0 {
		slog.Info("No courses found for slot generation (use -demo to load the demo catalogue)")
		return nil
	}

	slog.Info("Found courses for slot generation", "count", len(courses), "tee_times_per_day", len(times))

	for _, course := range courses {
		if err := g.generateSlotsForCourse(ctx, course, times); err != nil {
			slog.Error("Failed to generate slots for course", "course", course.Slug, "error", err)
			continue
		}
	}

	return nil
}

func (g *SlotGenerator) coursesForGeneration(ctx context.Context) ([]models.Course, error) {
	if *courseSlug != "" {
		course, err := g.repos.Courses.GetBySlug(ctx, *courseSlug)
		if err != nil {
			return nil, err
		}
		if course == nil {
			return nil, fmt.Errorf("course %q not found", *courseSlug)
		}
		return []models.Course{*course}, nil
	}
	return g.repos.Courses.UpdatedSince(ctx, time.Time{})
}

func (g *SlotGenerator) generateSlotsForCourse(ctx context.Context, course models.Course, times []string) error {
	dates := playDates(g.clock.Now(), course.TimeLocation(), *days)

	if *dryRun {
		slog.Info("[DRY RUN] Would generate slots for course",
			"course", course.Slug,
			"from", dates[0],
			"to", dates[len(dates)-1],
			"slots", len(dates)*len(times),
			"capacity", *capacity)
		return nil
	}

	// Seed is an upsert, so rerunning only adjusts capacity.
	generated := 0
	for _, date := range dates {
		for _, t := range times {
			key := models.SlotKey{CourseID: course.ID, Date: date, StartTime: t}
			if err := g.repos.Slots.Seed(ctx, key, *capacity); err != nil {
				return err
			}
			generated++
		}
	}

	slog.Info("Generated slots for course", "course", course.Slug, "slots", generated)
	return nil
}

// LoadDemoCatalogue upserts a small set of courses, discount codes and affiliates.
func (g *SlotGenerator) LoadDemoCatalogue(ctx context.Context) error {
	courses := []models.Course{
		{
			Slug:         "pebble-creek",
			Name:         "Pebble Creek Golf Club",
			Description:  "Championship 18-hole parkland course",
			Location:     "Monterey, CA",
			Timezone:     "America/Los_Angeles",
			WeekdayPrice: decimal.RequireFromString("120.00"),
			WeekendPrice: decimal.RequireFromString("160.00"),
			Currency:     "USD",
		},
		{
			Slug:         "dune-links",
			Name:         "Dune Links",
			Description:  "Coastal links with fescue fairways",
			Location:     "Bandon, OR",
			Timezone:     "America/Los_Angeles",
			WeekdayPrice: decimal.RequireFromString("95.00"),
			WeekendPrice: decimal.RequireFromString("130.00"),
			Currency:     "USD",
		},
		{
			Slug:         "highland-pines",
			Name:         "Highland Pines",
			Description:  "Mountain course, walking only",
			Location:     "Asheville, NC",
			Timezone:     "America/New_York",
			WeekdayPrice: decimal.RequireFromString("70.00"),
			WeekendPrice: decimal.RequireFromString("85.00"),
			Currency:     "USD",
		},
	}
	for i := range courses {
		if err := g.repos.Courses.Upsert(ctx, &courses[i]); err != nil {
			return err
		}
	}

	maxUses := 100
	minValue := decimal.RequireFromString("100.00")
	expires := g.clock.Now().AddDate(0, 3, 0)
	codes := []models.DiscountCode{
		{Code: "SAVE10", Type: models.DiscountPercentage, Value: decimal.RequireFromString("0.10"), MaxUses: &maxUses, ExpiresAt: &expires},
		{Code: "FIFTY", Type: models.DiscountFixedAmount, Value: decimal.RequireFromString("50.00"), MinBookingValue: &minValue},
	}
	for i := range codes {
		if err := g.repos.Discounts.Create(ctx, &codes[i]); err != nil {
			if database.IsUniqueViolation(err) {
				slog.Info("Discount code already exists, skipping", "code", codes[i].Code)
				continue
			}
			return err
		}
	}

	affiliate := models.Affiliate{Name: "Fairway Partners", ReferralCode: "FAIRWAY", CommissionRate: decimal.RequireFromString("0.10")}
	if err := g.repos.Affiliates.Create(ctx, &affiliate); err != nil {
		if !database.IsUniqueViolation(err) {
			return err
		}
		slog.Info("Affiliate already exists, skipping", "referral_code", affiliate.ReferralCode)
	}

	slog.Info("Demo catalogue loaded", "courses", len(courses), "discount_codes", len(codes))
	return nil
}

// teeTimes lists HH:MM start times from first to last inclusive.
func teeTimes(first, last string, step time.Duration) ([]string, error) {
	if step < time.Minute {
		return nil, fmt.Errorf("interval must be at least 1m, got %s", step)
	}
	from, err := time.Parse("15:04", first)
	if err != nil {
		return nil, fmt.Errorf("invalid -first %q: %w", first, err)
	}
	to, err := time.Parse("15:04", last)
	if err != nil {
		return nil, fmt.Errorf("invalid -last %q: %w", last, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("-last %s is before -first %s", last, first)
	}

	var times []string
	for t := from; !t.After(to); t = t.Add(step) {
		times = append(times, t.Format("15:04"))
	}
	return times, nil
}

// playDates returns n consecutive calendar dates starting with today in loc.
func playDates(now time.Time, loc *time.Location, n int) []string {
	if n < 1 {
		n = 1
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	dates := make([]string, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, today.AddDate(0, 0, i).Format("2006-01-02"))
	}
	return dates
}
