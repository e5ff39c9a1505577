package inventory

import (
	"context"
	"time"

	"teetime/internal/models"
)

// DefaultHoldTTL bounds how long a hold may wait for payment before the reaper releases it.
const DefaultHoldTTL = 10 * time.Minute

// HoldRequest asks for Players units of capacity on Slot.
type HoldRequest struct {
	Slot           models.SlotKey
	Players        int
	IdempotencyKey string
	TTL            time.Duration
}

// Inventory owns slot capacity. All mutations on a slot are linearizable:
// no two Reserve calls can both succeed if together they exceed capacity.
type Inventory interface {
	// Reserve atomically checks available >= players and raises the held count.
	Reserve(ctx context.Context, req HoldRequest) (models.Hold, error)
	// Release returns held capacity. Releasing a released or committed hold is a no-op.
	Release(ctx context.Context, token string) error
	// Commit turns a hold into a permanent decrement of capacity. Committing twice is a no-op.
	Commit(ctx context.Context, token string) error
	// ReleaseExpired releases holds whose expiry is at or before now.
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)
	// Available reports capacity minus held count.
	Available(ctx context.Context, slot models.SlotKey) (int, error)
}
