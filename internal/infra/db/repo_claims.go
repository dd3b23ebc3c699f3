package db

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payout/internal/domain"

	"gorm.io/gorm"
)

type ClaimRecordRepository struct {
	db *gorm.DB
}

func NewClaimRecordRepository(db *gorm.DB) *ClaimRecordRepository {
	return &ClaimRecordRepository{db: db}
}

// ReplaceBatch stores the committed claims for a cycle and discards records of
// earlier cycles. Proofs from earlier cycles no longer verify against the
// current root, so keeping them around only serves confusion.
func (r *ClaimRecordRepository) ReplaceBatch(ctx context.Context, batchCycle int64, records []domain.CommittedClaim) error {
	if r.db == nil {
		return errDBUnavailable
	}
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("batch_cycle < ?", batchCycle).Delete(&ClaimRecordModel{}).Error; err != nil {
			return err
		}
		for _, record := range records {
			proofJSON, err := encodeProof(record.Proof)
			if err != nil {
				return fmt.Errorf("encode proof for claim %d: %w", record.ClaimID, err)
			}
			model := ClaimRecordModel{
				LeafHash:    hex.EncodeToString(record.LeafHash),
				Beneficiary: record.Beneficiary.String(),
				ClaimID:     int64(record.ClaimID),
				Amount:      int64(record.Amount),
				BatchCycle:  record.BatchCycle,
				ProofJSON:   proofJSON,
				CreatedAt:   now,
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ClaimRecordRepository) GetByLeafHash(ctx context.Context, leafHash []byte) (*domain.CommittedClaim, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ClaimRecordModel
	err := r.db.WithContext(ctx).
		Where("leaf_hash = ?", hex.EncodeToString(leafHash)).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return claimRecordFromModel(model)
}

func claimRecordFromModel(model ClaimRecordModel) (*domain.CommittedClaim, error) {
	beneficiary, err := domain.ParseAddress(model.Beneficiary)
	if err != nil {
		return nil, fmt.Errorf("decode beneficiary: %w", err)
	}
	leafHash, err := hex.DecodeString(model.LeafHash)
	if err != nil {
		return nil, fmt.Errorf("decode leaf hash: %w", err)
	}
	proof, err := decodeProof(model.ProofJSON)
	if err != nil {
		return nil, fmt.Errorf("decode proof: %w", err)
	}
	return &domain.CommittedClaim{
		Claim: domain.Claim{
			Beneficiary: beneficiary,
			ClaimID:     uint64(model.ClaimID),
			Amount:      uint64(model.Amount),
		},
		LeafHash:   leafHash,
		Proof:      proof,
		BatchCycle: model.BatchCycle,
	}, nil
}

func encodeProof(proof [][]byte) ([]byte, error) {
	hexes := make([]string, 0, len(proof))
	for _, node := range proof {
		hexes = append(hexes, hex.EncodeToString(node))
	}
	return json.Marshal(hexes)
}

func decodeProof(raw []byte) ([][]byte, error) {
	var hexes []string
	if err := json.Unmarshal(raw, &hexes); err != nil {
		return nil, err
	}
	proof := make([][]byte, 0, len(hexes))
	for _, h := range hexes {
		node, err := hex.DecodeString(h)
		if err != nil {
			return nil, err
		}
		proof = append(proof, node)
	}
	return proof, nil
}
