package db

import (
	"context"
	"errors"
	"time"

	"payout/internal/domain"

	"gorm.io/gorm"
)

type RootRepository struct {
	db *gorm.DB
}

func NewRootRepository(db *gorm.DB) *RootRepository {
	return &RootRepository{db: db}
}

func (r *RootRepository) GetCurrent(ctx context.Context) (*domain.RootHead, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model RootHeadModel
	err := r.db.WithContext(ctx).
		Order("batch_cycle DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNoRoot
	}
	if err != nil {
		return nil, err
	}
	head := rootHeadFromModel(model)
	return &head, nil
}

func (r *RootRepository) BumpCycle(ctx context.Context) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var cycle int64
	if err := r.db.WithContext(ctx).
		Raw(
			`INSERT INTO batch_cycle (id, cycle, updated_at)
			 VALUES (1, 1, ?)
			 ON CONFLICT (id)
			 DO UPDATE SET cycle = batch_cycle.cycle + 1, updated_at = EXCLUDED.updated_at
			 RETURNING cycle`,
			time.Now().UTC(),
		).Scan(&cycle).Error; err != nil {
		return 0, err
	}
	return cycle, nil
}

func (r *RootRepository) SetRoot(ctx context.Context, head domain.RootHead) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := RootHeadModel{
		BatchCycle:  head.BatchCycle,
		RootHash:    copyBytes(head.RootHash),
		TreeSize:    head.TreeSize,
		Signature:   copyBytes(head.Signature),
		CommittedAt: head.CommittedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func rootHeadFromModel(model RootHeadModel) domain.RootHead {
	return domain.RootHead{
		RootHash:    copyBytes(model.RootHash),
		TreeSize:    model.TreeSize,
		BatchCycle:  model.BatchCycle,
		CommittedAt: model.CommittedAt.UTC(),
		Signature:   copyBytes(model.Signature),
	}
}
