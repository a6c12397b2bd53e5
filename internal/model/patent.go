package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Patent is a tax patent — the obligation a taxpayer settles through the bank.
// IsPaid is monotone: once true it never reverts, and only the reconciliation
// flow may set it.
type Patent struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TaxpayerID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"taxpayer_id"`
	Taxpayer    *User           `gorm:"foreignKey:TaxpayerID" json:"taxpayer,omitempty"`
	INN         string          `gorm:"type:varchar(14);not null;index" json:"inn"` // Taxpayer identification number
	PeriodStart time.Time       `gorm:"type:date;not null" json:"period_start"`
	PeriodEnd   time.Time       `gorm:"type:date;not null" json:"period_end"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	IsPaid      bool            `gorm:"not null;default:false;index" json:"is_paid"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the ID on insert; works on every dialect, sqlite included
func (p *Patent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
