package model

import (
	"time"
)

// Currency represents a currency the platform can transact in.
// The gateway selector keys its provider decision off the ISO code.
type Currency struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"type:varchar(3);uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Symbol    string    `json:"symbol" gorm:"type:varchar(10)"`
	Active    bool      `json:"active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
