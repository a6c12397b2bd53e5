package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"patentpay/internal/model"
	"patentpay/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreatePatentRequest struct {
	INN         string `json:"inn" binding:"required,max=14"`
	PeriodStart string `json:"period_start" binding:"required"` // YYYY-MM-DD
	PeriodEnd   string `json:"period_end" binding:"required"`   // YYYY-MM-DD
	Amount      string `json:"amount" binding:"required"`
}

type PatentResponse struct {
	ID          string `json:"id"`
	INN         string `json:"inn"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Amount      string `json:"amount"`
	IsPaid      bool   `json:"is_paid"`
	CreatedAt   string `json:"created_at"`
}

var ErrPatentNotFound = errors.New("patent not found")

// --- Interface ---

type PatentService interface {
	CreatePatent(ctx context.Context, taxpayerID string, req CreatePatentRequest) (PatentResponse, error)
	GetPatent(ctx context.Context, taxpayerID, patentID string) (PatentResponse, error)
	ListPatents(ctx context.Context, taxpayerID string, page, limit int) ([]PatentResponse, int64, error)
}

type patentService struct {
	patentRepo repository.PatentRepository
	auditRepo  repository.AuditRepository
}

func NewPatentService(patentRepo repository.PatentRepository, auditRepo repository.AuditRepository) PatentService {
	return &patentService{patentRepo: patentRepo, auditRepo: auditRepo}
}

// --- Implementation ---

const dateLayout = "2006-01-02"

func (s *patentService) CreatePatent(ctx context.Context, taxpayerID string, req CreatePatentRequest) (PatentResponse, error) {
	ownerID, err := uuid.Parse(taxpayerID)
	if err != nil {
		return PatentResponse{}, fmt.Errorf("invalid taxpayer id: %w", err)
	}

	periodStart, err := time.Parse(dateLayout, req.PeriodStart)
	if err != nil {
		return PatentResponse{}, fmt.Errorf("invalid period_start: %w", err)
	}
	periodEnd, err := time.Parse(dateLayout, req.PeriodEnd)
	if err != nil {
		return PatentResponse{}, fmt.Errorf("invalid period_end: %w", err)
	}
	if periodEnd.Before(periodStart) {
		return PatentResponse{}, errors.New("period_end must not be before period_start")
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return PatentResponse{}, fmt.Errorf("invalid amount: %w", err)
	}
	if !amount.IsPositive() {
		return PatentResponse{}, errors.New("amount must be positive")
	}

	patent := model.Patent{
		TaxpayerID:  ownerID,
		INN:         req.INN,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Amount:      amount,
	}

	if err := s.patentRepo.Create(ctx, &patent); err != nil {
		return PatentResponse{}, fmt.Errorf("failed to create patent: %w", err)
	}

	s.writeAudit(ctx, ownerID, model.ActionCreatePatent, patent.ID.String(),
		fmt.Sprintf(`{"inn":%q,"amount":%q}`, patent.INN, patent.Amount.StringFixed(2)))

	return toPatentResponse(patent), nil
}

func (s *patentService) GetPatent(ctx context.Context, taxpayerID, patentID string) (PatentResponse, error) {
	patent, err := s.findOwned(ctx, taxpayerID, patentID)
	if err != nil {
		return PatentResponse{}, err
	}
	return toPatentResponse(*patent), nil
}

func (s *patentService) ListPatents(ctx context.Context, taxpayerID string, page, limit int) ([]PatentResponse, int64, error) {
	ownerID, err := uuid.Parse(taxpayerID)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid taxpayer id: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	patents, total, err := s.patentRepo.ListByTaxpayer(ctx, ownerID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch patents: %w", err)
	}

	result := make([]PatentResponse, 0, len(patents))
	for _, p := range patents {
		result = append(result, toPatentResponse(p))
	}
	return result, total, nil
}

// findOwned loads a patent and enforces ownership. A patent belonging to
// someone else reads as not found, so existence is never leaked.
func (s *patentService) findOwned(ctx context.Context, taxpayerID, patentID string) (*model.Patent, error) {
	ownerID, err := uuid.Parse(taxpayerID)
	if err != nil {
		return nil, fmt.Errorf("invalid taxpayer id: %w", err)
	}
	id, err := uuid.Parse(patentID)
	if err != nil {
		return nil, ErrPatentNotFound
	}

	patent, err := s.patentRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatentNotFound
		}
		return nil, err
	}
	if patent.TaxpayerID != ownerID {
		return nil, ErrPatentNotFound
	}
	return patent, nil
}

func (s *patentService) writeAudit(ctx context.Context, userID uuid.UUID, action, entityID, details string) {
	entry := model.AuditLog{
		UserID:   &userID,
		Action:   action,
		EntityID: entityID,
		Details:  details,
	}
	// Audit failure must not fail the business operation
	_ = s.auditRepo.Log(ctx, &entry)
}

// --- Mapping ---

func toPatentResponse(p model.Patent) PatentResponse {
	return PatentResponse{
		ID:          p.ID.String(),
		INN:         p.INN,
		PeriodStart: p.PeriodStart.Format(dateLayout),
		PeriodEnd:   p.PeriodEnd.Format(dateLayout),
		Amount:      p.Amount.StringFixed(2),
		IsPaid:      p.IsPaid,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}
