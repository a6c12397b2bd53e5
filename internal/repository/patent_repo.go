package repository

import (
	"context"

	"patentpay/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PatentRepository interface {
	Create(ctx context.Context, patent *model.Patent) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Patent, error)
	// FindByIDForUpdate loads the patent with a row lock so callers inside a
	// transaction can check-then-insert without racing each other.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Patent, error)
	ListByTaxpayer(ctx context.Context, taxpayerID uuid.UUID, page, limit int) ([]model.Patent, int64, error)
	// MarkPaid flips is_paid to true. Idempotent: a patent that is already
	// paid is left untouched and no error is returned.
	MarkPaid(ctx context.Context, id uuid.UUID) error
}

type patentRepository struct {
	db *gorm.DB
}

func NewPatentRepository(db *gorm.DB) PatentRepository {
	return &patentRepository{db: db}
}

func (r *patentRepository) Create(ctx context.Context, patent *model.Patent) error {
	return GetDB(ctx, r.db).Create(patent).Error
}

func (r *patentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Patent, error) {
	var patent model.Patent
	if err := GetDB(ctx, r.db).First(&patent, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &patent, nil
}

func (r *patentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Patent, error) {
	db := GetDB(ctx, r.db)
	// sqlite's parser rejects SELECT ... FOR UPDATE; its single-writer lock
	// already serializes transactions, so the clause is only added elsewhere.
	if db.Dialector.Name() != "sqlite" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var patent model.Patent
	if err := db.First(&patent, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &patent, nil
}

func (r *patentRepository) ListByTaxpayer(ctx context.Context, taxpayerID uuid.UUID, page, limit int) ([]model.Patent, int64, error) {
	var patents []model.Patent
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Patent{}).Where("taxpayer_id = ?", taxpayerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Where("taxpayer_id = ?", taxpayerID).Order("created_at desc").Offset(offset).Limit(limit).Find(&patents).Error; err != nil {
		return nil, 0, err
	}

	return patents, total, nil
}

func (r *patentRepository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	// Guarded update: is_paid is monotone, the WHERE clause keeps concurrent
	// settlements from racing each other.
	return GetDB(ctx, r.db).Model(&model.Patent{}).
		Where("id = ? AND is_paid = ?", id, false).
		Update("is_paid", true).Error
}
