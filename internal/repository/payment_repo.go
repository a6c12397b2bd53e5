package repository

import (
	"context"
	"errors"

	"patentpay/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrBankIDTaken means the bank payment id is already bound to a different payment.
	ErrBankIDTaken = errors.New("bank payment id already attached to another payment")
	// ErrBankIDAlreadySet means this payment already carries a different bank payment id.
	ErrBankIDAlreadySet = errors.New("payment already has a bank payment id")
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	// FindByBankID resolves a bank callback's correlation token to a payment
	// with its patent preloaded.
	FindByBankID(ctx context.Context, bankPaymentID string) (*model.Payment, error)
	// AttachBankID binds the bank's correlation token to the payment and moves
	// it to PENDING in one statement set. The token is set exactly once.
	AttachBankID(ctx context.Context, paymentID uuid.UUID, bankPaymentID string) error
	// UpdateStatusIfNotPaid transitions the payment unless it is already PAID
	// (settlement is terminal). Returns whether a row actually changed, so
	// callers can tell a fresh transition from an idempotent no-op.
	UpdateStatusIfNotPaid(ctx context.Context, id uuid.UUID, status string) (bool, error)
	// HasActivePayment reports whether a NEW or PENDING payment exists for the patent.
	HasActivePayment(ctx context.Context, patentID uuid.UUID) (bool, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByBankID(ctx context.Context, bankPaymentID string) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).Preload("Patent").First(&payment, "bank_payment_id = ?", bankPaymentID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) AttachBankID(ctx context.Context, paymentID uuid.UUID, bankPaymentID string) error {
	db := GetDB(ctx, r.db)

	var taken int64
	if err := db.Model(&model.Payment{}).
		Where("bank_payment_id = ? AND id <> ?", bankPaymentID, paymentID).
		Count(&taken).Error; err != nil {
		return err
	}
	if taken > 0 {
		return ErrBankIDTaken
	}

	var payment model.Payment
	if err := db.First(&payment, "id = ?", paymentID).Error; err != nil {
		return err
	}
	if payment.BankPaymentID != nil {
		if *payment.BankPaymentID == bankPaymentID {
			return nil // same token re-attached, nothing to do
		}
		return ErrBankIDAlreadySet
	}

	// bank_payment_id IS NULL in the WHERE clause closes the race with a
	// concurrent attach; the unique index is the last line of defense.
	res := db.Model(&model.Payment{}).
		Where("id = ? AND bank_payment_id IS NULL", paymentID).
		Updates(map[string]interface{}{
			"bank_payment_id": bankPaymentID,
			"status":          model.PaymentStatusPending,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBankIDAlreadySet
	}
	return nil
}

func (r *paymentRepository) UpdateStatusIfNotPaid(ctx context.Context, id uuid.UUID, status string) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Payment{}).
		Where("id = ? AND status <> ?", id, model.PaymentStatusPaid).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *paymentRepository) HasActivePayment(ctx context.Context, patentID uuid.UUID) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Payment{}).
		Where("patent_id = ? AND status IN ?", patentID, []string{model.PaymentStatusNew, model.PaymentStatusPending}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
