package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"teetime/internal/database"
	apperrors "teetime/internal/errors"
	"teetime/internal/models"

	"github.com/google/uuid"
)

type ReconciliationRepository struct {
	db *database.DB
}

func NewReconciliationRepository(db *database.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

const reconciliationColumns = `id, booking_id, gateway_order_id, reason, payload, status, note, created_at, resolved_at`

func scanReconciliation(row interface{ Scan(...interface{}) error }) (*models.Reconciliation, error) {
	rc := &models.Reconciliation{}
	var bookingID sql.NullString
	var resolvedAt sql.NullTime
	var payload []byte
	err := row.Scan(
		&rc.ID,
		&bookingID,
		&rc.GatewayOrderID,
		&rc.Reason,
		&payload,
		&rc.Status,
		&rc.Note,
		&rc.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	rc.Payload = payload
	if bookingID.Valid {
		rc.BookingID = &bookingID.String
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		rc.ResolvedAt = &t
	}
	return rc, nil
}

func (r *ReconciliationRepository) Open(ctx context.Context, rc *models.Reconciliation) error {
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
	payload := []byte(rc.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	rc.Status = models.ReconciliationOpen

	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		INSERT INTO reconciliations (id, booking_id, gateway_order_id, reason, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		rc.ID, rc.BookingID, rc.GatewayOrderID, rc.Reason, string(payload), rc.Status,
	).Scan(&rc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to open reconciliation: %w", err)
	}
	return nil
}

func (r *ReconciliationRepository) GetByID(ctx context.Context, id string) (*models.Reconciliation, error) {
	rc, err := scanReconciliation(r.db.Conn(ctx).QueryRowContext(ctx,
		`SELECT `+reconciliationColumns+` FROM reconciliations WHERE id = $1`, id))
	if err == sql.ErrNoRows || database.IsInvalidInput(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation: %w", err)
	}
	return rc, nil
}

// List returns cases in status, oldest first. An empty status lists all.
func (r *ReconciliationRepository) List(ctx context.Context, status models.ReconciliationStatus, limit int) ([]models.Reconciliation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Conn(ctx).QueryContext(ctx, `
		SELECT `+reconciliationColumns+` FROM reconciliations
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at ASC
		LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliations: %w", err)
	}
	defer rows.Close()

	cases := []models.Reconciliation{}
	for rows.Next() {
		rc, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *rc)
	}
	return cases, rows.Err()
}

// Resolve closes a case. Resolving a closed case is a no-op.
func (r *ReconciliationRepository) Resolve(ctx context.Context, id, note string, at time.Time) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE reconciliations SET status = 'resolved', note = $2, resolved_at = $3
		WHERE id = $1 AND status = 'open'`, id, note, at)
	if err != nil {
		if database.IsInvalidInput(err) {
			return apperrors.ErrReconciliationNotFound
		}
		return fmt.Errorf("failed to resolve reconciliation: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return apperrors.ErrReconciliationNotFound
	}
	return nil
}

// ResolveByOrder closes every open case for a gateway order.
func (r *ReconciliationRepository) ResolveByOrder(ctx context.Context, orderID, note string, at time.Time) (int, error) {
	res, err := r.db.Conn(ctx).ExecContext(ctx, `
		UPDATE reconciliations SET status = 'resolved', note = $2, resolved_at = $3
		WHERE gateway_order_id = $1 AND status = 'open'`, orderID, note, at)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve reconciliations: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
