package outbox

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
)

// Append records a domain event inside the caller's transaction. The event
// becomes durable together with the primary write it describes, which is what
// keeps event delivery and state changes consistent: either both commit or
// neither does.
func Append(tx *gorm.DB, tenantID uint, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: encode payload for %s: %w", eventType, err)
	}

	event := model.OutboxEvent{
		EventID:  uuid.New().String(),
		TenantID: tenantID,
		Type:     eventType,
		Payload:  string(data),
	}

	if result := tx.Create(&event); result.Error != nil {
		return fmt.Errorf("outbox: append %s: %w", eventType, result.Error)
	}
	return nil
}
