package inventory

import (
	"context"
	"sync"
	"time"

	"teetime/internal/clock"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"

	"github.com/google/uuid"
)

type memorySlot struct {
	mu       sync.Mutex
	capacity int
	held     int
}

// Memory is an in-process Inventory guarded by a mutex per slot.
// Lock order is always slot.mu then m.mu.
type Memory struct {
	mu    sync.Mutex
	slots map[models.SlotKey]*memorySlot
	holds map[string]*models.Hold
	clock clock.Clock
}

func NewMemory(clk clock.Clock) *Memory {
	return &Memory{
		slots: make(map[models.SlotKey]*memorySlot),
		holds: make(map[string]*models.Hold),
		clock: clk,
	}
}

// Seed sets the capacity of a slot, keeping anything already held.
func (m *Memory) Seed(key models.SlotKey, capacity int) {
	s := m.slot(key, true)
	s.mu.Lock()
	s.capacity = capacity
	s.mu.Unlock()
}

// Snapshot returns the current counters of a slot.
func (m *Memory) Snapshot(key models.SlotKey) (capacity, held int) {
	s := m.slot(key, false)
	if s == nil {
		return 0, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity, s.held
}

func (m *Memory) slot(key models.SlotKey, create bool) *memorySlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok && create {
		s = &memorySlot{}
		m.slots[key] = s
	}
	return s
}

func (m *Memory) Reserve(ctx context.Context, req HoldRequest) (models.Hold, error) {
	if req.Players < 1 {
		return models.Hold{}, apperrors.Validation("players", "must be at least 1")
	}
	s := m.slot(req.Slot, false)
	if s == nil {
		return models.Hold{}, apperrors.ErrSlotUnavailable
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity-s.held < req.Players {
		return models.Hold{}, apperrors.ErrSlotUnavailable
	}
	s.held += req.Players

	now := m.clock.Now()
	hold := models.Hold{
		Token:          uuid.NewString(),
		Slot:           req.Slot,
		Players:        req.Players,
		Status:         models.HoldStatusHeld,
		IdempotencyKey: req.IdempotencyKey,
		ExpiresAt:      now.Add(ttl),
		CreatedAt:      now,
	}

	m.mu.Lock()
	m.holds[hold.Token] = &hold
	m.mu.Unlock()

	return hold, nil
}

func (m *Memory) lookup(token string) (models.Hold, *memorySlot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[token]
	if !ok {
		return models.Hold{}, nil, false
	}
	return *h, m.slots[h.Slot], true
}

func (m *Memory) Release(ctx context.Context, token string) error {
	hold, s, ok := m.lookup(token)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.release(token, s, hold.Players)
	return nil
}

// release flips a held hold to released. Caller holds s.mu.
func (m *Memory) release(token string, s *memorySlot, players int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.holds[token]
	if h.Status != models.HoldStatusHeld {
		return false
	}
	h.Status = models.HoldStatusReleased
	s.held -= players
	return true
}

func (m *Memory) Commit(ctx context.Context, token string) error {
	hold, s, ok := m.lookup(token)
	if !ok {
		return apperrors.ErrHoldNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.holds[token]
	switch h.Status {
	case models.HoldStatusCommitted:
		return nil
	case models.HoldStatusHeld:
		s.held -= hold.Players
		s.capacity -= hold.Players
	case models.HoldStatusReleased:
		// The reaper got here first; consume directly if capacity is still there.
		if s.capacity-s.held < hold.Players {
			return apperrors.ErrSlotUnavailable
		}
		s.capacity -= hold.Players
	}
	h.Status = models.HoldStatusCommitted
	return nil
}

func (m *Memory) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	var expired []string
	for token, h := range m.holds {
		if h.Status == models.HoldStatusHeld && !h.ExpiresAt.After(now) {
			expired = append(expired, token)
		}
	}
	m.mu.Unlock()

	released := 0
	for _, token := range expired {
		hold, s, ok := m.lookup(token)
		if !ok {
			continue
		}
		s.mu.Lock()
		if m.release(token, s, hold.Players) {
			released++
		}
		s.mu.Unlock()
	}
	return released, nil
}

func (m *Memory) Available(ctx context.Context, key models.SlotKey) (int, error) {
	capacity, held := m.Snapshot(key)
	return capacity - held, nil
}

// Hold returns a copy of the hold for token.
func (m *Memory) Hold(token string) (models.Hold, bool) {
	h, _, ok := m.lookup(token)
	return h, ok
}
