package storage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads and writes one or more stored boards.
type Repository interface {
	AppendEvent(ctx context.Context, rec *EventRecord) error
	Events(ctx context.Context, boardID uuid.UUID) ([]EventRecord, error)
	ReplaceObjects(ctx context.Context, boardID uuid.UUID, recs []ObjectRecord) error
	Objects(ctx context.Context, boardID uuid.UUID) ([]ObjectRecord, error)
}

type gormRepo struct {
	db *gorm.DB
}

// NewRepository returns a Repository backed by db.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepo{db: db}
}

func (r *gormRepo) AppendEvent(ctx context.Context, rec *EventRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *gormRepo) Events(ctx context.Context, boardID uuid.UUID) ([]EventRecord, error) {
	var recs []EventRecord
	err := r.db.WithContext(ctx).Where("board_id = ?", boardID).Order("seq").Find(&recs).Error
	return recs, err
}

// ReplaceObjects swaps the stored object table for recs in one transaction.
func (r *gormRepo) ReplaceObjects(ctx context.Context, boardID uuid.UUID, recs []ObjectRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", boardID).Delete(&ObjectRecord{}).Error; err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		return tx.CreateInBatches(recs, 200).Error
	})
}

func (r *gormRepo) Objects(ctx context.Context, boardID uuid.UUID) ([]ObjectRecord, error) {
	var recs []ObjectRecord
	err := r.db.WithContext(ctx).Where("board_id = ?", boardID).Order("created_at, id").Find(&recs).Error
	return recs, err
}
