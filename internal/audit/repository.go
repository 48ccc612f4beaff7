package audit

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, entry *Entry) error

	// CreateTx writes an entry on an open transaction so audit rows raised by
	// synchronous handlers commit atomically with the state change.
	CreateTx(tx *gorm.DB, entry *Entry) error

	List(ctx context.Context, query ListQuery) ([]Entry, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, entry *Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreateTx(tx *gorm.DB, entry *Entry) error {
	return tx.Create(entry).Error
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]Entry, int64, error) {
	query.normalize()

	db := r.db.WithContext(ctx).Model(&Entry{})
	if query.Action != "" {
		db = db.Where("action = ?", query.Action)
	}
	if query.EntityType != "" {
		db = db.Where("entity_type = ?", query.EntityType)
	}
	if query.EntityID != nil {
		db = db.Where("entity_id = ?", *query.EntityID)
	}
	if query.UserID != nil {
		db = db.Where("user_id = ?", *query.UserID)
	}
	if query.From != nil {
		db = db.Where("created_at >= ?", *query.From)
	}
	if query.To != nil {
		db = db.Where("created_at < ?", *query.To)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []Entry
	offset := (query.Page - 1) * query.Limit
	err := db.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
