package db

import (
	"context"
	"encoding/hex"

	"payout/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SpentLeafRepository struct {
	db *gorm.DB
}

func NewSpentLeafRepository(db *gorm.DB) *SpentLeafRepository {
	return &SpentLeafRepository{db: db}
}

func (r *SpentLeafRepository) IsSpent(ctx context.Context, leafHash []byte) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&SpentLeafModel{}).
		Where("leaf_hash = ?", hex.EncodeToString(leafHash)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkSpent inserts the leaf with insert-or-nothing semantics. The primary key
// conflict clause is what makes check-then-mark atomic under concurrent claims
// of the same leaf: exactly one caller observes an inserted row.
func (r *SpentLeafRepository) MarkSpent(ctx context.Context, spent domain.SpentLeaf) (bool, error) {
	if r.db == nil {
		return false, errDBUnavailable
	}
	model := SpentLeafModel{
		LeafHash:    hex.EncodeToString(spent.LeafHash),
		Beneficiary: spent.Beneficiary.String(),
		ClaimID:     int64(spent.ClaimID),
		Amount:      int64(spent.Amount),
		BatchCycle:  spent.BatchCycle,
		SpentAt:     spent.SpentAt,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
