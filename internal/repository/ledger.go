package repository

import (
	"context"
	"fmt"

	"teetime/internal/database"
)

// EventLedgerRepository remembers which payment webhooks were already applied.
type EventLedgerRepository struct {
	db *database.DB
}

func NewEventLedgerRepository(db *database.DB) *EventLedgerRepository {
	return &EventLedgerRepository{db: db}
}

// MarkProcessed records an event id and reports whether it was new.
func (r *EventLedgerRepository) MarkProcessed(ctx context.Context, eventID, provider, eventType string) (bool, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO processed_payment_events (event_id, provider, event_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`, eventID, provider, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
