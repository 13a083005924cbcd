package model

import (
	"time"
)

// WebhookEvent stores provider webhook payloads with deduplication metadata
// for idempotent processing. The unique (provider, provider_event_id) index
// is what makes webhook redelivery a no-op.
type WebhookEvent struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Provider        string     `json:"provider" gorm:"type:varchar(20);not null;index:ux_webhook_provider_event,unique"`
	ProviderEventID string     `json:"provider_event_id" gorm:"type:varchar(191);not null;index:ux_webhook_provider_event,unique"`
	EventType       string     `json:"event_type" gorm:"type:varchar(100);not null;index"`
	Payload         string     `json:"payload" gorm:"type:jsonb;not null"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `json:"processing_error" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at" gorm:"index"`
}
