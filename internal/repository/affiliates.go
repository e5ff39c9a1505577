package repository

import (
	"context"
	"database/sql"
	"fmt"

	"teetime/internal/database"
	"teetime/internal/models"

	"github.com/google/uuid"
)

type AffiliateRepository struct {
	db *database.DB
}

func NewAffiliateRepository(db *database.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

func (r *AffiliateRepository) Create(ctx context.Context, a *models.Affiliate) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.db.Conn(ctx).ExecContext(ctx, `
		INSERT INTO affiliates (id, name, referral_code, commission_rate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (referral_code) DO UPDATE SET name = EXCLUDED.name, commission_rate = EXCLUDED.commission_rate`,
		a.ID, a.Name, a.ReferralCode, a.CommissionRate)
	if err != nil {
		return fmt.Errorf("failed to create affiliate: %w", err)
	}
	return nil
}

func (r *AffiliateRepository) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	a := &models.Affiliate{}
	err := r.db.Conn(ctx).QueryRowContext(ctx, `
		SELECT id, name, referral_code, commission_rate
		FROM affiliates WHERE referral_code = $1`, code,
	).Scan(&a.ID, &a.Name, &a.ReferralCode, &a.CommissionRate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}
	return a, nil
}
