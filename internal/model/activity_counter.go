package model

import (
	"time"
)

// ActivityCounter holds the unread-notification count for one (tenant, user)
// pair. Rows are created lazily on first increment and the count never goes
// below zero. All mutations happen through SQL-level atomic expressions, not
// read-modify-write in application code.
type ActivityCounter struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TenantID  uint      `json:"tenant_id" gorm:"index:idx_counter_tenant_user,unique;not null"`
	UserID    uint      `json:"user_id" gorm:"index:idx_counter_tenant_user,unique;not null"`
	Count     int64     `json:"count" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}
