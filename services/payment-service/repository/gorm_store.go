package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DocumentRow is the Postgres row behind one document.
type DocumentRow struct {
	ID        string    `gorm:"type:varchar(128);primaryKey"`
	Data      []byte    `gorm:"type:bytea;not null"`
	Version   int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (DocumentRow) TableName() string { return "pipeline_documents" }

// GormStore keeps documents in a single Postgres table with a version column.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the documents table.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&DocumentRow{})
}

func (s *GormStore) Read(ctx context.Context, id string) (Document, error) {
	var row DocumentRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return Document{ID: row.ID, Data: row.Data, Version: row.Version}, nil
}

func (s *GormStore) Write(ctx context.Context, id string, data []byte, expectedVersion int64) (int64, error) {
	now := time.Now().UTC()
	if expectedVersion == 0 {
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&DocumentRow{ID: id, Data: data, Version: 1, UpdatedAt: now})
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 0 {
			return 0, ErrVersionConflict
		}
		return 1, nil
	}

	next := expectedVersion + 1
	res := s.db.WithContext(ctx).Model(&DocumentRow{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"data":       data,
			"version":    next,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrVersionConflict
	}
	return next, nil
}
