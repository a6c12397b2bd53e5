package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreatePatent    = "CREATE_PATENT"
	ActionInitiatePayment = "INITIATE_PAYMENT"

	// Reconciliation outcomes recorded from bank callbacks
	ActionPaymentSettled = "PAYMENT_SETTLED"
	ActionPaymentFailed  = "PAYMENT_FAILED"
	ActionAmountMismatch = "AMOUNT_MISMATCH"
)

// AuditLog tracks Who, What, and When for money-moving changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable: bank callbacks carry no user
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns the ID on insert; works on every dialect, sqlite included
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
