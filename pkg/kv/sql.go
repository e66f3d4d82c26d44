package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is the row layout of the SQL driver. The table is created by the
// database/migrations package.
type Record struct {
	Key       string    `gorm:"column:record_key;primaryKey;size:191"`
	Value     []byte    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Record) TableName() string { return "kv_records" }

// SQL stores one row per key through gorm.
type SQL struct {
	db *gorm.DB
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Get(ctx context.Context, key string) ([]byte, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("record_key = ?", key).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kv/sql: get %s: %w", key, err)
	}
	return rec.Value, nil
}

func (s *SQL) Set(ctx context.Context, key string, value []byte) error {
	rec := Record{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("kv/sql: set %s: %w", key, err)
	}
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("record_key = ?", key).Delete(&Record{}).Error
	if err != nil {
		return fmt.Errorf("kv/sql: delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the connection belongs to pkg/database.
func (s *SQL) Close() error { return nil }
