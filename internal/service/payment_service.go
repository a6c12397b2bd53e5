package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"patentpay/internal/bank"
	"patentpay/internal/model"
	"patentpay/internal/repository"
	"patentpay/internal/websocket"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrPatentAlreadyPaid = errors.New("patent is already paid")
	// ErrPaymentInFlight blocks a second initiation while a NEW or PENDING
	// payment exists for the same patent, so two payments can never both
	// settle one obligation.
	ErrPaymentInFlight = errors.New("an unfinished payment already exists for this patent")
)

// BankAPI is the outbound provider call the initiator depends on.
// *bank.Client satisfies it; tests substitute a stub.
type BankAPI interface {
	CreatePayment(ctx context.Context, req bank.CreatePaymentRequest) (*bank.CreatePaymentResult, error)
}

type PaymentInitResponse struct {
	PatentID    string `json:"patent_id"`
	PaymentID   string `json:"payment_id"`
	PaymentCode string `json:"payment_code"`
	Status      string `json:"status"`
	BankPayURL  string `json:"bank_pay_url"`
}

type PaymentService interface {
	InitiatePayment(ctx context.Context, taxpayerID, patentID string) (PaymentInitResponse, error)
}

type paymentService struct {
	patentRepo  repository.PatentRepository
	paymentRepo repository.PaymentRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	bankAPI     BankAPI
	hub         *websocket.Hub
}

func NewPaymentService(
	patentRepo repository.PatentRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	bankAPI BankAPI,
	hub *websocket.Hub,
) PaymentService {
	return &paymentService{
		patentRepo:  patentRepo,
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		bankAPI:     bankAPI,
		hub:         hub,
	}
}

// InitiatePayment creates a local payment and registers it with the bank.
//
// The bank call is synchronous and never retried here: if it fails, the
// payment stays in NEW for operator reconciliation (the bank-side state is
// unknown, silently rolling back could lose a registered payment) and the
// error goes back to the caller.
func (s *paymentService) InitiatePayment(ctx context.Context, taxpayerID, patentID string) (PaymentInitResponse, error) {
	ownerID, err := uuid.Parse(taxpayerID)
	if err != nil {
		return PaymentInitResponse{}, fmt.Errorf("invalid taxpayer id: %w", err)
	}
	id, err := uuid.Parse(patentID)
	if err != nil {
		return PaymentInitResponse{}, ErrPatentNotFound
	}

	// 1. Check and create in one transaction with the patent row locked, so
	// two concurrent initiations cannot both pass the in-flight check and
	// end up with two live payments for one patent.
	var patent *model.Patent
	var payment model.Payment
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		patent, err = s.patentRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPatentNotFound
			}
			return err
		}
		if patent.TaxpayerID != ownerID {
			return ErrPatentNotFound
		}
		if patent.IsPaid {
			return ErrPatentAlreadyPaid
		}

		inFlight, err := s.paymentRepo.HasActivePayment(txCtx, patent.ID)
		if err != nil {
			return err
		}
		if inFlight {
			return ErrPaymentInFlight
		}

		// Local payment starts in NEW, amount frozen at what is owed now
		payment = model.Payment{
			PatentID:    patent.ID,
			Amount:      patent.Amount,
			PaymentCode: model.GeneratePaymentCode(),
			Status:      model.PaymentStatusNew,
		}
		return s.paymentRepo.Create(txCtx, &payment)
	})
	if err != nil {
		return PaymentInitResponse{}, err
	}

	// 2. Register the payment with the bank
	result, err := s.bankAPI.CreatePayment(ctx, bank.CreatePaymentRequest{
		Amount:      payment.Amount.StringFixed(2),
		Currency:    "KGS",
		Description: fmt.Sprintf("Tax patent payment #%s", patent.ID),
		PaymentCode: payment.PaymentCode,
	})
	if err != nil {
		log.Printf("Bank registration failed for payment %s: %v", payment.ID, err)
		return PaymentInitResponse{}, fmt.Errorf("bank payment registration failed: %w", err)
	}

	// 3. Bind the bank id and move to PENDING atomically
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return s.paymentRepo.AttachBankID(txCtx, payment.ID, result.BankPaymentID)
	})
	if err != nil {
		return PaymentInitResponse{}, fmt.Errorf("failed to attach bank payment id: %w", err)
	}

	s.writeAudit(ctx, ownerID, payment, result.BankPaymentID)
	if s.hub != nil {
		s.hub.BroadcastEvent(websocket.PaymentEvent{
			Type:      websocket.EventPaymentInitiated,
			PaymentID: payment.ID.String(),
			PatentID:  patent.ID.String(),
			Status:    model.PaymentStatusPending,
		})
	}

	return PaymentInitResponse{
		PatentID:    patent.ID.String(),
		PaymentID:   payment.ID.String(),
		PaymentCode: payment.PaymentCode,
		Status:      model.PaymentStatusPending,
		BankPayURL:  result.PayURL,
	}, nil
}

func (s *paymentService) writeAudit(ctx context.Context, userID uuid.UUID, payment model.Payment, bankID string) {
	entry := model.AuditLog{
		UserID:   &userID,
		Action:   model.ActionInitiatePayment,
		EntityID: payment.ID.String(),
		Details:  fmt.Sprintf(`{"payment_code":%q,"bank_payment_id":%q,"amount":%q}`, payment.PaymentCode, bankID, payment.Amount.StringFixed(2)),
	}
	_ = s.auditRepo.Log(ctx, &entry)
}
