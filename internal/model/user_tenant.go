package model

import (
	"time"

	"gorm.io/gorm"
)

// Membership roles within a tenant.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// UserTenant represents the association between users and tenants
// This enables multi-tenancy by allowing users to belong to multiple tenants.
// Every tenant has exactly one owner-role member, created together with the
// tenant itself.
type UserTenant struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    uint           `json:"user_id" gorm:"index:idx_user_tenant,unique;not null"`
	TenantID  uint           `json:"tenant_id" gorm:"index:idx_user_tenant,unique;not null"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null;default:'member'"` // Role within tenant: 'owner' or 'member'
	IsDefault bool           `json:"is_default" gorm:"default:false"`                        // Whether this is the user's default tenant
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Tenant Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}
