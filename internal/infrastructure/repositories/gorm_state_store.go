package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/you/findmyseat/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStateStore implements domain.StateStore using GORM
type GormStateStore struct {
	db *gorm.DB
}

// DBStateEntry represents one persisted client key
type DBStateEntry struct {
	Key       string `gorm:"column:state_key;primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (DBStateEntry) TableName() string {
	return "client_state"
}

// NewGormStateStore creates a new GORM-backed state store
func NewGormStateStore(db *gorm.DB) domain.StateStore {
	return &GormStateStore{db: db}
}

// Get implements domain.StateStore
func (r *GormStateStore) Get(ctx context.Context, key string) (string, error) {
	var entry DBStateEntry
	err := r.db.WithContext(ctx).Where("state_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return entry.Value, nil
}

// Set implements domain.StateStore as an upsert
func (r *GormStateStore) Set(ctx context.Context, key, value string) error {
	entry := DBStateEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Delete implements domain.StateStore
func (r *GormStateStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("state_key IN ?", keys).Delete(&DBStateEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}
