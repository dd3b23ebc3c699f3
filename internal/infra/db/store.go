package db

import (
	"fmt"
	"log"

	"payout/internal/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func NewStore(cfg config.Config) (*Store, error) {
	if cfg.PostgresDSN == "" {
		log.Printf("POSTGRES_DSN not set; starting in no-db mode (in-memory ledger).")
		return &Store{DB: nil}, nil
	}

	gdb, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{DB: gdb}, nil
}

// Migrate creates the schema, including the two raw counter tables the
// repositories address with plain SQL.
func (s *Store) Migrate() error {
	if s.DB == nil {
		return nil
	}
	if err := s.DB.AutoMigrate(
		&RootHeadModel{},
		&SpentLeafModel{},
		&ClaimRecordModel{},
		&PayoutModel{},
		&AuditEventModel{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := s.DB.Exec(
		`CREATE TABLE IF NOT EXISTS batch_cycle (id INT PRIMARY KEY, cycle BIGINT NOT NULL, updated_at TIMESTAMPTZ NOT NULL)`,
	).Error; err != nil {
		return fmt.Errorf("migrate batch_cycle: %w", err)
	}
	if err := s.DB.Exec(
		`CREATE TABLE IF NOT EXISTS audit_seq (id INT PRIMARY KEY, seq BIGINT NOT NULL)`,
	).Error; err != nil {
		return fmt.Errorf("migrate audit_seq: %w", err)
	}
	return nil
}
