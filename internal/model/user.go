package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents the user model stored in the database
type User struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Email    string `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password string `json:"-" gorm:"type:varchar(255)"`
	// TenantID is the user's last visited tenant. It is refreshed every time
	// the user successfully resolves a tenant-scoped route and is consulted
	// when the user lands on a route without a tenant segment.
	TenantID   *uint          `json:"tenant_id,omitempty" gorm:"index"`
	VerifiedAt *time.Time     `json:"verified_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// Verified reports whether the user has completed email verification.
func (u *User) Verified() bool {
	return u.VerifiedAt != nil
}
