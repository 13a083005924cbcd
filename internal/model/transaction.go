package model

import (
	"time"

	"gorm.io/gorm"
)

// Transaction statuses.
const (
	TransactionPending    = "pending"
	TransactionSuccessful = "successful"
	TransactionFailed     = "failed"
)

// Transaction represents a payment processed through one of the configured
// gateways. Amount is stored in the currency's minor unit.
type Transaction struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Reference string `json:"reference" gorm:"type:varchar(64);uniqueIndex;not null"` // our reference, sent to the provider
	TenantID  uint   `json:"tenant_id" gorm:"index;not null"`
	UserID    uint   `json:"user_id" gorm:"index;not null"`
	LoanID    *uint  `json:"loan_id,omitempty" gorm:"index"`
	Amount    int64  `json:"amount" gorm:"not null"`
	Currency  string `json:"currency" gorm:"type:varchar(3);not null"`
	Provider  string `json:"provider" gorm:"type:varchar(20);not null"` // gateway that handled this transaction
	Status    string `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	// ProviderRef is the provider-side identifier returned when the checkout
	// was initialized, used to correlate webhook payloads.
	ProviderRef string         `json:"provider_ref" gorm:"type:varchar(191)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
