package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus enum constants
const (
	PaymentStatusNew     = "NEW"     // created locally, not yet registered with the bank
	PaymentStatusPending = "PENDING" // registered with the bank, awaiting callback
	PaymentStatusPaid    = "PAID"    // settled; terminal, never overwritten
	PaymentStatusFailed  = "FAILED"  // failed or amount mismatch
)

// Payment is one attempt to settle a Patent's amount through the bank.
// Amount is captured at initiation time — the amount owed then, not a live
// reference to the patent. PaymentCode is our internal correlation token;
// BankPaymentID is the bank's, set exactly once after registration.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PatentID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"patent_id"`
	Patent        *Patent         `gorm:"foreignKey:PatentID" json:"patent,omitempty"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentCode   string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"payment_code"`
	Status        string          `gorm:"type:varchar(20);not null;default:'NEW';index" json:"status"`
	BankPaymentID *string         `gorm:"type:varchar(64);uniqueIndex" json:"bank_payment_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns the ID on insert; works on every dialect, sqlite included
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// GeneratePaymentCode returns a new internal correlation token. Any format
// works as long as it is unique; the column's unique index is the backstop.
func GeneratePaymentCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
