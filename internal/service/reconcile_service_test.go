package service

import (
	"context"
	"testing"

	"patentpay/internal/model"
	"patentpay/internal/repository"

	"github.com/google/uuid"
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

type reconcileFixture struct {
	db       *gorm.DB
	patents  repository.PatentRepository
	payments repository.PaymentRepository
	engine   ReconcileService
	patent   *model.Patent
	payment  *model.Payment
}

// newReconcileFixture stands up a PENDING payment with bank id BANK-1 for a
// 5000.00 patent, the state right after a successful initiation.
func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	ctx := context.Background()
	db := newTestDB(t)

	patents := repository.NewPatentRepository(db)
	payments := repository.NewPaymentRepository(db)
	audits := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	patent := &model.Patent{
		TaxpayerID: uuid.New(),
		INN:        "12345678901234",
		Amount:     decimal.RequireFromString("5000.00"),
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
	if err := payments.AttachBankID(ctx, payment.ID, "BANK-1"); err != nil {
		t.Fatalf("failed to attach bank id: %v", err)
	}

	return &reconcileFixture{
		db:       db,
		patents:  patents,
		payments: payments,
		engine:   NewReconcileService(payments, patents, audits, txManager, nil),
		patent:   patent,
		payment:  payment,
	}
}

func (f *reconcileFixture) apply(t *testing.T, bankID, status, amount string) Outcome {
	t.Helper()
	outcome, err := f.engine.Apply(context.Background(), Notification{
		BankPaymentID: bankID,
		Status:        status,
		Amount:        decimal.RequireFromString(amount),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	return outcome
}

func (f *reconcileFixture) paymentStatus(t *testing.T) string {
	t.Helper()
	got, err := f.payments.FindByID(context.Background(), f.payment.ID)
	if err != nil {
		t.Fatalf("failed to reload payment: %v", err)
	}
	return got.Status
}

func (f *reconcileFixture) patentPaid(t *testing.T) bool {
	t.Helper()
	got, err := f.patents.FindByID(context.Background(), f.patent.ID)
	if err != nil {
		t.Fatalf("failed to reload patent: %v", err)
	}
	return got.IsPaid
}

func TestReconcile_Settlement(t *testing.T) {
	t.Run("Given a PENDING payment When a matching PAID notification arrives Then it settles and the patent is paid", func(t *testing.T) {
		f := newReconcileFixture(t)

		outcome := f.apply(t, "BANK-1", model.PaymentStatusPaid, "5000.00")

		if outcome != OutcomeSettled {
			t.Errorf("expected Settled, got %s", outcome)
		}
		if got := f.paymentStatus(t); got != model.PaymentStatusPaid {
			t.Errorf("expected payment PAID, got %s", got)
		}
		if !f.patentPaid(t) {
			t.Error("expected patent is_paid to be true")
		}
	})

	t.Run("Given a settled payment When the same PAID notification is redelivered Then it is absorbed", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.apply(t, "BANK-1", model.PaymentStatusPaid, "5000.00")

		outcome := f.apply(t, "BANK-1", model.PaymentStatusPaid, "5000.00")

		if outcome != OutcomeAlreadySettled {
			t.Errorf("expected AlreadySettled, got %s", outcome)
		}
		if got := f.paymentStatus(t); got != model.PaymentStatusPaid {
			t.Errorf("expected payment to stay PAID, got %s", got)
		}
		if !f.patentPaid(t) {
			t.Error("expected patent to stay paid")
		}
	})

	t.Run("Given a settled payment When a FAILED notification arrives later Then the settlement wins", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.apply(t, "BANK-1", model.PaymentStatusPaid, "5000.00")

		outcome := f.apply(t, "BANK-1", model.PaymentStatusFailed, "5000.00")

		if outcome != OutcomeAlreadySettled {
			t.Errorf("expected AlreadySettled, got %s", outcome)
		}
		if got := f.paymentStatus(t); got != model.PaymentStatusPaid {
			t.Errorf("expected payment to stay PAID, got %s", got)
		}
	})
}

func TestReconcile_Failure(t *testing.T) {
	t.Run("Given a PENDING payment When a FAILED notification arrives Then it is marked failed", func(t *testing.T) {
		f := newReconcileFixture(t)

		outcome := f.apply(t, "BANK-1", model.PaymentStatusFailed, "5000.00")

		if outcome != OutcomeMarkedFailed {
			t.Errorf("expected MarkedFailed, got %s", outcome)
		}
		if got := f.paymentStatus(t); got != model.PaymentStatusFailed {
			t.Errorf("expected payment FAILED, got %s", got)
		}
		if f.patentPaid(t) {
			t.Error("patent must not be marked paid on failure")
		}
	})

	t.Run("Given a failed payment When a PAID notification arrives later Then it can still settle", func(t *testing.T) {
		// FAILED is terminal for us but the bank's word is authoritative;
		// only PAID is protected from being overwritten.
		f := newReconcileFixture(t)
		f.apply(t, "BANK-1", model.PaymentStatusFailed, "5000.00")

		outcome := f.apply(t, "BANK-1", model.PaymentStatusPaid, "5000.00")

		if outcome != OutcomeSettled {
			t.Errorf("expected Settled, got %s", outcome)
		}
		if got := f.paymentStatus(t); got != model.PaymentStatusPaid {
			t.Errorf("expected payment PAID, got %s", got)
		}
	})
}

func TestReconcile_AmountMismatch(t *testing.T) {
	t.Run("Given a PENDING payment When the notification asserts a different amount Then the payment fails", func(t *testing.T) {
		f := newReconcileFixture(t)

		outcome := f.apply(t, "BANK-1", model.PaymentStatusPaid, "4999.00")

		if outcome != OutcomeAmountMismatch {
			t.Errorf("expected AmountMismatch, got %s", outcome)
		}
		if got := f.paymentStatus(t); got != model.PaymentStatusFailed {
			t.Errorf("expected payment FAILED, got %s", got)
		}
		if f.patentPaid(t) {
			t.Error("patent must not be marked paid on a mismatched amount")
		}
	})

	t.Run("Given a settled payment When a mismatched notification arrives Then PAID is never overwritten", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.apply(t, "BANK-1", model.PaymentStatusPaid, "5000.00")

		outcome := f.apply(t, "BANK-1", model.PaymentStatusPaid, "4999.00")

		if outcome != OutcomeAmountMismatch {
			t.Errorf("expected AmountMismatch, got %s", outcome)
		}
		if got := f.paymentStatus(t); got != model.PaymentStatusPaid {
			t.Errorf("expected payment to stay PAID, got %s", got)
		}
	})
}

func TestReconcile_UnknownPayment(t *testing.T) {
	f := newReconcileFixture(t)

	outcome := f.apply(t, "BANK-999", model.PaymentStatusPaid, "5000.00")

	if outcome != OutcomeUnknownPayment {
		t.Errorf("expected UnknownPayment, got %s", outcome)
	}
	if got := f.paymentStatus(t); got != model.PaymentStatusPending {
		t.Errorf("an unknown bank id must not touch other payments, got %s", got)
	}
	if f.patentPaid(t) {
		t.Error("an unknown bank id must not touch the patent")
	}
}
