package inventory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"teetime/internal/clock"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slotKey = models.SlotKey{CourseID: "course-1", Date: "2025-01-10", StartTime: "11:00"}

func newSeeded(capacity int) *Memory {
	inv := NewMemory(clock.NewFixed(time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)))
	inv.Seed(slotKey, capacity)
	return inv
}

func TestReserveSingleUnitOnlyOneWins(t *testing.T) {
	inv := newSeeded(1)

	const callers = 64
	var wg sync.WaitGroup
	var ok, unavailable int64
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := inv.Reserve(context.Background(), HoldRequest{Slot: slotKey, Players: 1})
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, apperrors.ErrSlotUnavailable):
				atomic.AddInt64(&unavailable, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), ok)
	assert.Equal(t, int64(callers-1), unavailable)
}

func TestCapacityInvariantUnderMixedOperations(t *testing.T) {
	const capacity = 12
	inv := newSeeded(capacity)

	var wg sync.WaitGroup
	var committed int64
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for j := 0; j < 25; j++ {
				hold, err := inv.Reserve(context.Background(), HoldRequest{Slot: slotKey, Players: 1 + r.Intn(3)})
				if err != nil {
					continue
				}
				if r.Intn(4) == 0 {
					if err := inv.Commit(context.Background(), hold.Token); err == nil {
						atomic.AddInt64(&committed, int64(hold.Players))
					}
				} else {
					_ = inv.Release(context.Background(), hold.Token)
				}

				c, held := inv.Snapshot(slotKey)
				assert.GreaterOrEqual(t, c-held, 0)
				assert.LessOrEqual(t, int64(held)+atomic.LoadInt64(&committed), int64(capacity))
			}
		}(int64(i))
	}
	wg.Wait()

	c, held := inv.Snapshot(slotKey)
	assert.Equal(t, 0, held)
	assert.Equal(t, int64(capacity), int64(c)+committed)
}

func TestReleaseIsIdempotent(t *testing.T) {
	inv := newSeeded(4)

	hold, err := inv.Reserve(context.Background(), HoldRequest{Slot: slotKey, Players: 3})
	require.NoError(t, err)

	require.NoError(t, inv.Release(context.Background(), hold.Token))
	require.NoError(t, inv.Release(context.Background(), hold.Token))
	require.NoError(t, inv.Release(context.Background(), "unknown-token"))

	available, _ := inv.Available(context.Background(), slotKey)
	assert.Equal(t, 4, available)
}

func TestCommitConsumesCapacity(t *testing.T) {
	inv := newSeeded(4)

	hold, err := inv.Reserve(context.Background(), HoldRequest{Slot: slotKey, Players: 2})
	require.NoError(t, err)
	require.NoError(t, inv.Commit(context.Background(), hold.Token))
	require.NoError(t, inv.Commit(context.Background(), hold.Token))

	capacity, held := inv.Snapshot(slotKey)
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 0, held)

	// Releasing after commit must not hand capacity back.
	require.NoError(t, inv.Release(context.Background(), hold.Token))
	capacity, held = inv.Snapshot(slotKey)
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 0, held)
}

func TestCommitUnknownHold(t *testing.T) {
	inv := newSeeded(1)
	err := inv.Commit(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrHoldNotFound))
}

func TestReserveUnseededSlot(t *testing.T) {
	inv := newSeeded(1)
	_, err := inv.Reserve(context.Background(), HoldRequest{Slot: models.SlotKey{CourseID: "other", Date: "2025-01-10", StartTime: "11:00"}, Players: 1})
	assert.True(t, errors.Is(err, apperrors.ErrSlotUnavailable))
}

func TestReleaseExpired(t *testing.T) {
	inv := newSeeded(4)

	short, err := inv.Reserve(context.Background(), HoldRequest{Slot: slotKey, Players: 1, TTL: time.Minute})
	require.NoError(t, err)
	long, err := inv.Reserve(context.Background(), HoldRequest{Slot: slotKey, Players: 2})
	require.NoError(t, err)
	assert.Equal(t, short.CreatedAt.Add(DefaultHoldTTL), long.ExpiresAt)

	released, err := inv.ReleaseExpired(context.Background(), short.ExpiresAt)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	h, _ := inv.Hold(short.Token)
	assert.Equal(t, models.HoldStatusReleased, h.Status)

	available, _ := inv.Available(context.Background(), slotKey)
	assert.Equal(t, 2, available)
}

func TestCommitAfterReaperReleased(t *testing.T) {
	inv := newSeeded(2)

	hold, err := inv.Reserve(context.Background(), HoldRequest{Slot: slotKey, Players: 2, TTL: time.Second})
	require.NoError(t, err)
	_, err = inv.ReleaseExpired(context.Background(), hold.ExpiresAt)
	require.NoError(t, err)

	t.Run("capacity still free", func(t *testing.T) {
		require.NoError(t, inv.Commit(context.Background(), hold.Token))
		capacity, held := inv.Snapshot(slotKey)
		assert.Equal(t, 0, capacity)
		assert.Equal(t, 0, held)
	})

	t.Run("capacity taken by someone else", func(t *testing.T) {
		inv := newSeeded(2)
		hold, err := inv.Reserve(context.Background(), HoldRequest{Slot: slotKey, Players: 2, TTL: time.Second})
		require.NoError(t, err)
		_, err = inv.ReleaseExpired(context.Background(), hold.ExpiresAt)
		require.NoError(t, err)
		_, err = inv.Reserve(context.Background(), HoldRequest{Slot: slotKey, Players: 1})
		require.NoError(t, err)

		err = inv.Commit(context.Background(), hold.Token)
		assert.True(t, errors.Is(err, apperrors.ErrSlotUnavailable))
	})
}
