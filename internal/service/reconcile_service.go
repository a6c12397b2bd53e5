package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"patentpay/internal/model"
	"patentpay/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Outcome classifies how a bank notification was applied. Every outcome is
// acknowledged to the bank with a success response — an unknown payment or a
// mismatched amount cannot be fixed by redelivery.
type Outcome string

const (
	OutcomeSettled        Outcome = "SETTLED"         // payment moved to PAID, patent marked paid
	OutcomeAlreadySettled Outcome = "ALREADY_SETTLED" // duplicate delivery, or FAILED after PAID; no-op
	OutcomeMarkedFailed   Outcome = "MARKED_FAILED"   // payment moved to FAILED
	OutcomeAmountMismatch Outcome = "AMOUNT_MISMATCH" // bank asserted a different amount
	OutcomeUnknownPayment Outcome = "UNKNOWN_PAYMENT" // no payment carries this bank id
)

// Notification is the validated content of a bank callback.
type Notification struct {
	BankPaymentID string
	Status        string // model.PaymentStatusPaid or model.PaymentStatusFailed
	Amount        decimal.Decimal
}

// ReconcileService applies authenticated bank notifications to the ledger.
type ReconcileService interface {
	Apply(ctx context.Context, n Notification) (Outcome, error)
}

type reconcileService struct {
	paymentRepo repository.PaymentRepository
	patentRepo  repository.PatentRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	notify      func(payment *model.Payment, outcome Outcome)
}

// NewReconcileService wires the reconciliation engine. notify (optional) is
// called after a state-changing outcome commits, outside the transaction.
func NewReconcileService(
	paymentRepo repository.PaymentRepository,
	patentRepo repository.PatentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notify func(payment *model.Payment, outcome Outcome),
) ReconcileService {
	return &reconcileService{
		paymentRepo: paymentRepo,
		patentRepo:  patentRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		notify:      notify,
	}
}

// Apply decides and executes the payment's transition for one notification.
//
// Bank deliveries can arrive duplicated, out of order, or for payments we
// never issued. The rules, in order:
//  1. unknown bank id → UnknownPayment, nothing changes;
//  2. amount differs from the recorded one → FAILED (unless already PAID)
//     and AmountMismatch — a data-integrity signal, not a retryable error;
//  3. PAID → settle payment and patent, idempotent on redelivery;
//  4. FAILED → mark failed, but an earlier PAID always wins.
//
// The whole decision runs in one transaction. Status writes are guarded
// UPDATEs (status <> 'PAID'), so two concurrent deliveries of the same
// notification serialize on the row and only one observes a transition.
func (s *reconcileService) Apply(ctx context.Context, n Notification) (Outcome, error) {
	var (
		outcome Outcome
		payment *model.Payment
	)

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		payment, err = s.paymentRepo.FindByBankID(txCtx, n.BankPaymentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = OutcomeUnknownPayment
				return nil
			}
			return err
		}

		if !payment.Amount.Equal(n.Amount) {
			if _, err := s.paymentRepo.UpdateStatusIfNotPaid(txCtx, payment.ID, model.PaymentStatusFailed); err != nil {
				return err
			}
			outcome = OutcomeAmountMismatch
			return nil
		}

		switch n.Status {
		case model.PaymentStatusPaid:
			changed, err := s.paymentRepo.UpdateStatusIfNotPaid(txCtx, payment.ID, model.PaymentStatusPaid)
			if err != nil {
				return err
			}
			if !changed {
				outcome = OutcomeAlreadySettled
				return nil
			}
			if err := s.patentRepo.MarkPaid(txCtx, payment.PatentID); err != nil {
				return err
			}
			outcome = OutcomeSettled

		case model.PaymentStatusFailed:
			changed, err := s.paymentRepo.UpdateStatusIfNotPaid(txCtx, payment.ID, model.PaymentStatusFailed)
			if err != nil {
				return err
			}
			if !changed {
				// The earlier settlement is authoritative
				outcome = OutcomeAlreadySettled
				return nil
			}
			outcome = OutcomeMarkedFailed

		default:
			return fmt.Errorf("unsupported notification status %q", n.Status)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.record(ctx, payment, n, outcome)
	return outcome, nil
}

// record logs and audits the applied outcome; failures here never bubble up
// into the acknowledgment sent to the bank.
func (s *reconcileService) record(ctx context.Context, payment *model.Payment, n Notification, outcome Outcome) {
	switch outcome {
	case OutcomeUnknownPayment:
		log.Printf("Bank callback: payment not found for bank id %s", n.BankPaymentID)
		return
	case OutcomeAlreadySettled:
		log.Printf("Bank callback: payment %s already settled, notification absorbed", payment.ID)
		return
	}

	action := model.ActionPaymentSettled
	switch outcome {
	case OutcomeMarkedFailed:
		action = model.ActionPaymentFailed
		log.Printf("Bank callback: payment %s marked as FAILED", payment.ID)
	case OutcomeAmountMismatch:
		action = model.ActionAmountMismatch
		log.Printf("Bank callback: amount mismatch. Local=%s, Bank=%s, payment_id=%s",
			payment.Amount.StringFixed(2), n.Amount.StringFixed(2), payment.ID)
	default:
		log.Printf("Bank callback: payment %s marked as PAID", payment.ID)
	}

	entry := model.AuditLog{
		Action:   action,
		EntityID: payment.ID.String(),
		Details: fmt.Sprintf(`{"bank_payment_id":%q,"reported_amount":%q,"recorded_amount":%q}`,
			n.BankPaymentID, n.Amount.StringFixed(2), payment.Amount.StringFixed(2)),
	}
	_ = s.auditRepo.Log(ctx, &entry)

	if s.notify != nil {
		s.notify(payment, outcome)
	}
}
