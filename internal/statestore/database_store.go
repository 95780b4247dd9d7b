package statestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tyemirov/helpdesk/internal/gormdb"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatabaseStore persists documents in a state_entries table through GORM.
type DatabaseStore struct {
	db          *gorm.DB
	driverLabel string
	now         func() time.Time
}

type stateEntryRecord struct {
	Key           string `gorm:"column:state_key;primaryKey"`
	Value         []byte `gorm:"column:value;not null"`
	UpdatedAtUnix int64  `gorm:"column:updated_at_unix;not null"`
}

func (stateEntryRecord) TableName() string {
	return "state_entries"
}

// NewDatabaseStore opens databaseURL (sqlite:// or postgres://) and migrates
// the state table.
func NewDatabaseStore(ctx context.Context, databaseURL string) (*DatabaseStore, error) {
	gormDB, driverLabel, err := gormdb.Open(ctx, databaseURL, &stateEntryRecord{})
	if err != nil {
		return nil, fmt.Errorf("state_store.open: %w", err)
	}
	return &DatabaseStore{db: gormDB, driverLabel: driverLabel, now: time.Now}, nil
}

// Driver exposes the selected database driver label.
func (store *DatabaseStore) Driver() string {
	return store.driverLabel
}

// Close releases the underlying connection pool.
func (store *DatabaseStore) Close() error {
	return gormdb.Close(store.db)
}

func (store *DatabaseStore) Put(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("state_store.put.%s: %w", store.driverLabel, ErrEmptyKey)
	}
	record := stateEntryRecord{
		Key:           key,
		Value:         append([]byte{}, value...),
		UpdatedAtUnix: store.now().UTC().Unix(),
	}
	err := store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at_unix"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("state_store.put.%s: %w", store.driverLabel, err)
	}
	return nil
}

func (store *DatabaseStore) Get(ctx context.Context, key string) ([]byte, error) {
	var record stateEntryRecord
	err := store.db.WithContext(ctx).Where("state_key = ?", key).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("state_store.get.%s: %w", store.driverLabel, ErrNotFound)
		}
		return nil, fmt.Errorf("state_store.get.%s: %w", store.driverLabel, err)
	}
	return record.Value, nil
}

func (store *DatabaseStore) Delete(ctx context.Context, key string) error {
	if err := store.db.WithContext(ctx).Where("state_key = ?", key).Delete(&stateEntryRecord{}).Error; err != nil {
		return fmt.Errorf("state_store.delete.%s: %w", store.driverLabel, err)
	}
	return nil
}
