package model

import (
	"time"
)

// Entity type tags used in polymorphic subject/causer references.
// Resolution is by tag, never by reflected type names.
const (
	EntityUser        = "user"
	EntityLoan        = "loan"
	EntityTransaction = "transaction"
	EntityTenant      = "tenant"
)

// Activity is an immutable, tenant-scoped log entry. Rows are only ever
// created; there is no update or delete path, which is also what guarantees
// the unread counter is incremented at most once per logical activity.
type Activity struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	TenantID    uint   `json:"tenant_id" gorm:"index;not null"`
	UserID      *uint  `json:"user_id,omitempty" gorm:"index"` // user the activity was recorded for
	Description string `json:"description" gorm:"type:varchar(255);not null"`
	SubjectType string `json:"subject_type" gorm:"type:varchar(50)"`
	SubjectID   *uint  `json:"subject_id,omitempty"`
	CauserType  string `json:"causer_type" gorm:"type:varchar(50)"`
	CauserID    *uint  `json:"causer_id,omitempty"`
	// Properties is a free-form JSON bag. The recorder consults it for
	// affected_user_id / user_id hints when deciding who gets notified.
	Properties string    `json:"properties" gorm:"type:jsonb"`
	CreatedAt  time.Time `json:"created_at" gorm:"index"`
}
