package model

import (
	"time"

	"gorm.io/gorm"
)

// Loan statuses.
const (
	LoanPending  = "pending"
	LoanApproved = "approved"
	LoanRejected = "rejected"
)

// Loan represents a loan request raised by a tenant member. Approval and
// rejection are owner-only operations and emit domain events through the
// outbox.
type Loan struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	TenantID   uint           `json:"tenant_id" gorm:"index;not null"`
	BorrowerID uint           `json:"borrower_id" gorm:"index;not null"`
	Amount     int64          `json:"amount" gorm:"not null"`
	Currency   string         `json:"currency" gorm:"type:varchar(3);not null"`
	Purpose    string         `json:"purpose" gorm:"type:text"`
	Status     string         `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	DecidedBy  *uint          `json:"decided_by,omitempty"` // user who approved or rejected
	DecidedAt  *time.Time     `json:"decided_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}
