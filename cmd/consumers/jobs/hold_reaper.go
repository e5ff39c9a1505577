package jobs

import (
	"context"
	"log/slog"
	"time"

	"teetime/internal/clock"
	"teetime/internal/inventory"
	"teetime/internal/messaging"
	"teetime/internal/metrics"
	"teetime/internal/models"
)

const DefaultReaperInterval = 30 * time.Second

// DiscountReleaser gives back discount uses reserved by expired holds.
type DiscountReleaser interface {
	ReleaseExpiredReservations(ctx context.Context, now time.Time) (int, error)
}

// HoldReaperJob returns capacity and discount uses held by attempts that never finished payment
type HoldReaperJob struct {
	inventory inventory.Inventory
	discounts DiscountReleaser
	publisher messaging.Publisher
	clock     clock.Clock
	interval  time.Duration
	ticker    *time.Ticker
	done      chan bool
}

// NewHoldReaperJob creates a new hold reaper
func NewHoldReaperJob(inv inventory.Inventory, discounts DiscountReleaser, publisher messaging.Publisher, clk clock.Clock, interval time.Duration) *HoldReaperJob {
	if interval <= 0 {
		interval = DefaultReaperInterval
	}
	return &HoldReaperJob{
		inventory: inv,
		discounts: discounts,
		publisher: publisher,
		clock:     clk,
		interval:  interval,
		done:      make(chan bool),
	}
}

// Start runs the reaper immediately and then on every tick until Stop
func (j *HoldReaperJob) Start(ctx context.Context) {
	slog.Info("Starting hold reaper job", "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)

	go func() {
		j.RunOnce(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.RunOnce(ctx)
			case <-j.done:
				slog.Info("Hold reaper job stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *HoldReaperJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

// RunOnce releases every hold past its expiry and reports how many were released
func (j *HoldReaperJob) RunOnce(ctx context.Context) int {
	now := j.clock.Now()

	// Discount uses expire with the same deadline as their holds.
	discountsReleased := 0
	if j.discounts != nil {
		n, err := j.discounts.ReleaseExpiredReservations(ctx, now)
		if err != nil {
			slog.Error("Failed to release expired discount reservations", "error", err)
		} else if n > 0 {
			discountsReleased = n
			slog.Info("Released expired discount reservations", "count", n)
		}
	}

	released, err := j.inventory.ReleaseExpired(ctx, now)
	if err != nil {
		slog.Error("Failed to release expired holds", "error", err)
		return 0
	}

	if released == 0 {
		slog.Debug("No expired holds found")
		return 0
	}

	metrics.HoldsReleased.Add(float64(released))
	slog.Info("Released expired holds", "count", released)

	if err := j.publisher.Publish(ctx, models.EventHoldsExpired, models.HoldsExpiredEvent{
		Released:          released,
		DiscountsReleased: discountsReleased,
		Timestamp:         now,
	}); err != nil {
		// Capacity is already back; the event is informational.
		slog.Error("Failed to publish holds expired event", "error", err, "event_type", models.EventHoldsExpired)
	}

	return released
}
