package service

import (
	"context"
	"fmt"
	"strings"

	"teetime/internal/clock"
	apperrors "teetime/internal/errors"
	"teetime/internal/logger"
	"teetime/internal/models"
)

// ReconciliationService lets operators list and close cases where money moved
// but booking state did not follow.
type ReconciliationService struct {
	store ReconciliationStore
	clock clock.Clock
}

func NewReconciliationService(store ReconciliationStore, clk clock.Clock) *ReconciliationService {
	return &ReconciliationService{store: store, clock: clk}
}

func (s *ReconciliationService) List(ctx context.Context, status models.ReconciliationStatus, limit int) ([]models.Reconciliation, error) {
	switch status {
	case "", models.ReconciliationOpen, models.ReconciliationResolved:
	default:
		return nil, apperrors.Validation("status", "must be open or resolved")
	}
	cases, err := s.store.List(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliations: %w", err)
	}
	return cases, nil
}

// Resolve closes a case with the operator's note. Resolving a closed case is a no-op.
func (s *ReconciliationService) Resolve(ctx context.Context, id, note string) (*models.Reconciliation, error) {
	if strings.TrimSpace(note) == "" {
		return nil, apperrors.Validation("note", "is required")
	}
	if err := s.store.Resolve(ctx, id, note, s.clock.Now()); err != nil {
		return nil, err
	}
	rc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get reconciliation: %w", err)
	}
	if rc == nil {
		return nil, apperrors.ErrReconciliationNotFound
	}
	logger.WithContext(ctx).Info("Reconciliation resolved", "reconciliation_id", id, "order_id", rc.GatewayOrderID)
	return rc, nil
}
