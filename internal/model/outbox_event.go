package model

import (
	"time"
)

// Domain event types delivered through the outbox.
const (
	EventLoanApproved         = "loan.approved"
	EventLoanRejected         = "loan.rejected"
	EventTransactionCompleted = "transaction.completed"
)

// OutboxEvent is a domain event appended in the same database transaction as
// the primary write it describes. A background dispatcher delivers events
// at-least-once; handlers must tolerate redelivery.
type OutboxEvent struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	EventID     string     `json:"event_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	TenantID    uint       `json:"tenant_id" gorm:"index;not null"`
	Type        string     `json:"type" gorm:"type:varchar(100);not null;index"`
	Payload     string     `json:"payload" gorm:"type:jsonb;not null"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	LastError   string     `json:"last_error" gorm:"type:text"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" gorm:"index"`
	CreatedAt   time.Time  `json:"created_at"`
}
