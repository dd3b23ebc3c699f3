package db

import (
	"context"
	"encoding/hex"
	"time"

	"payout/internal/domain"

	"gorm.io/gorm"
)

type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(ctx context.Context, auth domain.PayoutAuthorization) (domain.PayoutAuthorization, error) {
	if r.db == nil {
		return domain.PayoutAuthorization{}, errDBUnavailable
	}
	if auth.ID == "" {
		id, err := newUUID()
		if err != nil {
			return domain.PayoutAuthorization{}, err
		}
		auth.ID = id
	}
	if auth.AuthorizedAt.IsZero() {
		auth.AuthorizedAt = time.Now().UTC()
	} else {
		auth.AuthorizedAt = auth.AuthorizedAt.UTC()
	}
	model := PayoutModel{
		ID:           auth.ID,
		LeafHash:     hex.EncodeToString(auth.LeafHash),
		Beneficiary:  auth.Beneficiary.String(),
		ClaimID:      int64(auth.ClaimID),
		Amount:       int64(auth.Amount),
		BatchCycle:   auth.BatchCycle,
		AuthorizedAt: auth.AuthorizedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.PayoutAuthorization{}, err
	}
	return auth, nil
}
