package repository

import (
	"context"
	"errors"
	"testing"

	"patentpay/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	// A fresh in-memory database exists per connection; pin the pool to one
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.User{}, &model.Patent{}, &model.Payment{}, &model.AuditLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

func createPatentWithPayment(t *testing.T, db *gorm.DB, amount string) (*model.Patent, *model.Payment) {
	t.Helper()
	ctx := context.Background()

	patents := NewPatentRepository(db)
	payments := NewPaymentRepository(db)

	patent := &model.Patent{
		INN:    "12345678901234",
		Amount: decimal.RequireFromString(amount),
	}
	if err := patents.Create(ctx, patent); err != nil {
		t.Fatalf("failed to create patent: %v", err)
	}

	payment := &model.Payment{
		PatentID:    patent.ID,
		Amount:      patent.Amount,
		PaymentCode: model.GeneratePaymentCode(),
		Status:      model.PaymentStatusNew,
	}
	if err := payments.Create(ctx, payment); err != nil {
		t.Fatalf("failed to create payment: %v", err)
	}

	return patent, payment
}

func TestPaymentRepository_AttachBankID(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a NEW payment When a bank id is attached Then it becomes PENDING with the id bound", func(t *testing.T) {
		db := newTestDB(t)
		payments := NewPaymentRepository(db)
		_, payment := createPatentWithPayment(t, db, "5000.00")

		if err := payments.AttachBankID(ctx, payment.ID, "BANK-1"); err != nil {
			t.Fatalf("AttachBankID failed: %v", err)
		}

		got, err := payments.FindByID(ctx, payment.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.Status != model.PaymentStatusPending {
			t.Errorf("expected status PENDING, got %s", got.Status)
		}
		if got.BankPaymentID == nil || *got.BankPaymentID != "BANK-1" {
			t.Errorf("expected bank id BANK-1, got %v", got.BankPaymentID)
		}
	})

	t.Run("Given an attached bank id When the same id is attached again Then it is a no-op", func(t *testing.T) {
		db := newTestDB(t)
		payments := NewPaymentRepository(db)
		_, payment := createPatentWithPayment(t, db, "5000.00")

		if err := payments.AttachBankID(ctx, payment.ID, "BANK-1"); err != nil {
			t.Fatalf("first attach failed: %v", err)
		}
		if err := payments.AttachBankID(ctx, payment.ID, "BANK-1"); err != nil {
			t.Errorf("re-attaching the same id should be a no-op, got %v", err)
		}
	})

	t.Run("Given an attached bank id When a different id is attached Then it fails", func(t *testing.T) {
		db := newTestDB(t)
		payments := NewPaymentRepository(db)
		_, payment := createPatentWithPayment(t, db, "5000.00")

		if err := payments.AttachBankID(ctx, payment.ID, "BANK-1"); err != nil {
			t.Fatalf("first attach failed: %v", err)
		}
		if err := payments.AttachBankID(ctx, payment.ID, "BANK-2"); !errors.Is(err, ErrBankIDAlreadySet) {
			t.Errorf("expected ErrBankIDAlreadySet, got %v", err)
		}
	})

	t.Run("Given a bank id bound to one payment When attached to another Then it conflicts", func(t *testing.T) {
		db := newTestDB(t)
		payments := NewPaymentRepository(db)
		_, first := createPatentWithPayment(t, db, "5000.00")
		_, second := createPatentWithPayment(t, db, "700.00")

		if err := payments.AttachBankID(ctx, first.ID, "BANK-1"); err != nil {
			t.Fatalf("first attach failed: %v", err)
		}
		if err := payments.AttachBankID(ctx, second.ID, "BANK-1"); !errors.Is(err, ErrBankIDTaken) {
			t.Errorf("expected ErrBankIDTaken, got %v", err)
		}
	})
}

func TestPaymentRepository_FindByBankID(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentRepository(db)
	patent, payment := createPatentWithPayment(t, db, "5000.00")

	if err := payments.AttachBankID(ctx, payment.ID, "BANK-1"); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	got, err := payments.FindByBankID(ctx, "BANK-1")
	if err != nil {
		t.Fatalf("FindByBankID failed: %v", err)
	}
	if got.ID != payment.ID {
		t.Errorf("resolved the wrong payment: %s", got.ID)
	}
	if got.Patent == nil || got.Patent.ID != patent.ID {
		t.Error("expected the patent to be preloaded")
	}

	if _, err := payments.FindByBankID(ctx, "BANK-999"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound for an unknown bank id, got %v", err)
	}
}

func TestPaymentRepository_UpdateStatusIfNotPaid(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a PENDING payment When transitioned to PAID Then the row changes", func(t *testing.T) {
		db := newTestDB(t)
		payments := NewPaymentRepository(db)
		_, payment := createPatentWithPayment(t, db, "5000.00")

		changed, err := payments.UpdateStatusIfNotPaid(ctx, payment.ID, model.PaymentStatusPaid)
		if err != nil {
			t.Fatalf("transition failed: %v", err)
		}
		if !changed {
			t.Error("expected the transition to change the row")
		}
	})

	t.Run("Given a PAID payment When any transition is attempted Then nothing changes", func(t *testing.T) {
		db := newTestDB(t)
		payments := NewPaymentRepository(db)
		_, payment := createPatentWithPayment(t, db, "5000.00")

		if _, err := payments.UpdateStatusIfNotPaid(ctx, payment.ID, model.PaymentStatusPaid); err != nil {
			t.Fatalf("setup transition failed: %v", err)
		}

		changed, err := payments.UpdateStatusIfNotPaid(ctx, payment.ID, model.PaymentStatusFailed)
		if err != nil {
			t.Fatalf("transition failed: %v", err)
		}
		if changed {
			t.Error("a PAID payment must never transition again")
		}

		got, _ := payments.FindByID(ctx, payment.ID)
		if got.Status != model.PaymentStatusPaid {
			t.Errorf("expected status to remain PAID, got %s", got.Status)
		}
	})
}

func TestPaymentRepository_HasActivePayment(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	payments := NewPaymentRepository(db)
	patent, payment := createPatentWithPayment(t, db, "5000.00")

	active, err := payments.HasActivePayment(ctx, patent.ID)
	if err != nil {
		t.Fatalf("HasActivePayment failed: %v", err)
	}
	if !active {
		t.Error("a NEW payment should count as active")
	}

	if _, err := payments.UpdateStatusIfNotPaid(ctx, payment.ID, model.PaymentStatusFailed); err != nil {
		t.Fatalf("transition failed: %v", err)
	}

	active, err = payments.HasActivePayment(ctx, patent.ID)
	if err != nil {
		t.Fatalf("HasActivePayment failed: %v", err)
	}
	if active {
		t.Error("a FAILED payment should not count as active")
	}
}

func TestPatentRepository_MarkPaid(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	patents := NewPatentRepository(db)
	patent, _ := createPatentWithPayment(t, db, "5000.00")

	if err := patents.MarkPaid(ctx, patent.ID); err != nil {
		t.Fatalf("MarkPaid failed: %v", err)
	}
	got, err := patents.FindByID(ctx, patent.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if !got.IsPaid {
		t.Error("expected is_paid to be true")
	}

	// Monotone: a second call is a harmless no-op
	if err := patents.MarkPaid(ctx, patent.ID); err != nil {
		t.Errorf("MarkPaid on a paid patent should not error: %v", err)
	}
}
