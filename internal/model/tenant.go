package model

import (
	"time"

	"gorm.io/gorm"
)

// Tenant represents the tenant model stored in the database
// This is the core of our multi-tenant architecture. Every request under
// /:tenant resolves its path segment against this table, and every
// tenant-scoped row carries this tenant's ID.
type Tenant struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Slug        string         `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name        string         `json:"name" gorm:"type:varchar(100);uniqueIndex"`
	Description string         `json:"description" gorm:"type:text"`
	OwnerID     uint           `json:"owner_id" gorm:"index;not null"`
	Active      bool           `json:"active" gorm:"default:true"`
	Settings    string         `json:"settings" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
