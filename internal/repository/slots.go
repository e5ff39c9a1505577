package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"teetime/internal/clock"
	"teetime/internal/database"
	apperrors "teetime/internal/errors"
	"teetime/internal/inventory"
	"teetime/internal/models"

	"github.com/google/uuid"
)

// SlotRepository is the Postgres Inventory. Every mutation is a guarded
// UPDATE on the slot row, so held_count never exceeds capacity.
type SlotRepository struct {
	db    *database.DB
	clock clock.Clock
}

var _ inventory.Inventory = (*SlotRepository)(nil)

func NewSlotRepository(db *database.DB, clk clock.Clock) *SlotRepository {
	return &SlotRepository{db: db, clock: clk}
}

// Seed creates a slot or changes its capacity, never below what is already held.
func (r *SlotRepository) Seed(ctx context.Context, key models.SlotKey, capacity int) error {
	query := `
		INSERT INTO slots (course_id, play_date, start_time, capacity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (course_id, play_date, start_time) DO UPDATE
		SET capacity = GREATEST(EXCLUDED.capacity, slots.held_count), updated_at = NOW()`

	if _, err := r.db.Conn(ctx).ExecContext(ctx, query, key.CourseID, key.Date, key.StartTime, capacity); err != nil {
		return fmt.Errorf("failed to seed slot %s: %w", key, err)
	}
	return nil
}

func (r *SlotRepository) ListByCourseDate(ctx context.Context, courseID, date string) ([]models.Slot, error) {
	query := `
		SELECT course_id, to_char(play_date, 'YYYY-MM-DD'), start_time, capacity, held_count, updated_at
		FROM slots
		WHERE course_id = $1 AND play_date = $2
		ORDER BY start_time`

	rows, err := r.db.Conn(ctx).QueryContext(ctx, query, courseID, date)
	if err != nil {
		if database.IsInvalidInput(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		var s models.Slot
		if err := rows.Scan(&s.CourseID, &s.Date, &s.StartTime, &s.Capacity, &s.HeldCount, &s.UpdatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *SlotRepository) Reserve(ctx context.Context, req inventory.HoldRequest) (models.Hold, error) {
	if req.Players < 1 {
		return models.Hold{}, apperrors.Validation("players", "must be at least 1")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = inventory.DefaultHoldTTL
	}

	now := r.clock.Now()
	hold := models.Hold{
		Token:          uuid.NewString(),
		Slot:           req.Slot,
		Players:        req.Players,
		Status:         models.HoldStatusHeld,
		IdempotencyKey: req.IdempotencyKey,
		ExpiresAt:      now.Add(ttl),
		CreatedAt:      now,
	}

	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		res, err := r.db.Conn(ctx).ExecContext(ctx, `
			UPDATE slots SET held_count = held_count + $4, updated_at = NOW()
			WHERE course_id = $1 AND play_date = $2 AND start_time = $3 AND capacity - held_count >= $4`,
			req.Slot.CourseID, req.Slot.Date, req.Slot.StartTime, req.Players)
		if err != nil {
			if database.IsInvalidInput(err) {
				return apperrors.ErrSlotUnavailable
			}
			return fmt.Errorf("failed to reserve slot: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.ErrSlotUnavailable
		}

		_, err = r.db.Conn(ctx).ExecContext(ctx, `
			INSERT INTO holds (token, course_id, play_date, start_time, players, status, idempotency_key, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			hold.Token, req.Slot.CourseID, req.Slot.Date, req.Slot.StartTime,
			hold.Players, hold.Status, hold.IdempotencyKey, hold.ExpiresAt, hold.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create hold: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Hold{}, err
	}
	return hold, nil
}

func (r *SlotRepository) Release(ctx context.Context, token string) error {
	if _, err := uuid.Parse(token); err != nil {
		return nil
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		var key models.SlotKey
		var players int
		err := r.db.Conn(ctx).QueryRowContext(ctx, `
			UPDATE holds SET status = 'released'
			WHERE token = $1 AND status = 'held'
			RETURNING course_id, to_char(play_date, 'YYYY-MM-DD'), start_time, players`, token,
		).Scan(&key.CourseID, &key.Date, &key.StartTime, &players)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to release hold: %w", err)
		}

		_, err = r.db.Conn(ctx).ExecContext(ctx, `
			UPDATE slots SET held_count = held_count - $4, updated_at = NOW()
			WHERE course_id = $1 AND play_date = $2 AND start_time = $3`,
			key.CourseID, key.Date, key.StartTime, players)
		if err != nil {
			return fmt.Errorf("failed to return held capacity: %w", err)
		}
		return nil
	})
}

func (r *SlotRepository) Commit(ctx context.Context, token string) error {
	if _, err := uuid.Parse(token); err != nil {
		return apperrors.ErrHoldNotFound
	}
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		var key models.SlotKey
		var players int
		var status models.HoldStatus
		err := r.db.Conn(ctx).QueryRowContext(ctx, `
			SELECT course_id, to_char(play_date, 'YYYY-MM-DD'), start_time, players, status
			FROM holds WHERE token = $1 FOR UPDATE`, token,
		).Scan(&key.CourseID, &key.Date, &key.StartTime, &players, &status)
		if err == sql.ErrNoRows {
			return apperrors.ErrHoldNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load hold: %w", err)
		}

		var query string
		switch status {
		case models.HoldStatusCommitted:
			return nil
		case models.HoldStatusHeld:
			query = `
				UPDATE slots SET held_count = held_count - $4, capacity = capacity - $4, updated_at = NOW()
				WHERE course_id = $1 AND play_date = $2 AND start_time = $3`
		default:
			// Released by the reaper; take the capacity directly if it is still free.
			query = `
				UPDATE slots SET capacity = capacity - $4, updated_at = NOW()
				WHERE course_id = $1 AND play_date = $2 AND start_time = $3 AND capacity - held_count >= $4`
		}

		res, err := r.db.Conn(ctx).ExecContext(ctx, query, key.CourseID, key.Date, key.StartTime, players)
		if err != nil {
			return fmt.Errorf("failed to commit slot capacity: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.ErrSlotUnavailable
		}

		if _, err := r.db.Conn(ctx).ExecContext(ctx,
			`UPDATE holds SET status = 'committed' WHERE token = $1`, token); err != nil {
			return fmt.Errorf("failed to mark hold committed: %w", err)
		}
		return nil
	})
}

func (r *SlotRepository) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		WITH expired AS (
			UPDATE holds SET status = 'released'
			WHERE status = 'held' AND expires_at <= $1
			RETURNING course_id, play_date, start_time, players
		), totals AS (
			SELECT course_id, play_date, start_time, SUM(players) AS players
			FROM expired GROUP BY course_id, play_date, start_time
		), returned AS (
			UPDATE slots s SET held_count = s.held_count - t.players, updated_at = NOW()
			FROM totals t
			WHERE s.course_id = t.course_id AND s.play_date = t.play_date AND s.start_time = t.start_time
			RETURNING 1
		)
		SELECT COUNT(*) FROM expired`

	var released int
	if err := r.db.Conn(ctx).QueryRowContext(ctx, query, now).Scan(&released); err != nil {
		return 0, fmt.Errorf("failed to release expired holds: %w", err)
	}
	return released, nil
}

func (r *SlotRepository) Available(ctx context.Context, key models.SlotKey) (int, error) {
	var available int
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT capacity - held_count FROM slots
		WHERE course_id = $1 AND play_date = $2 AND start_time = $3`,
		key.CourseID, key.Date, key.StartTime,
	).Scan(&available)
	if err == sql.ErrNoRows || database.IsInvalidInput(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read availability: %w", err)
	}
	return available, nil
}
