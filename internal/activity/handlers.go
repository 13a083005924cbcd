package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
)

// loanDecisionPayload mirrors the outbox payload written by the loan
// decision endpoints.
type loanDecisionPayload struct {
	LoanID     uint   `json:"loan_id"`
	BorrowerID uint   `json:"borrower_id"`
	DecidedBy  uint   `json:"decided_by"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// transactionCompletedPayload mirrors the outbox payload written when a
// transaction settles successfully.
type transactionCompletedPayload struct {
	TransactionID  uint   `json:"transaction_id"`
	Reference      string `json:"reference"`
	AffectedUserID uint   `json:"affected_user_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Provider       string `json:"provider"`
}

// LoanDecisionHandler records the activity for a loan decision event.
// Delivery is at-least-once, so a redelivered event that already produced
// its activity row is skipped without a second counter increment.
func LoanDecisionHandler(r *Recorder, description string) func(ctx context.Context, event *model.OutboxEvent) error {
	return func(ctx context.Context, event *model.OutboxEvent) error {
		var payload loanDecisionPayload
		if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.Type, err)
		}
		if payload.LoanID == 0 {
			return fmt.Errorf("%s event %s carries no loan id", event.Type, event.EventID)
		}

		recorded, err := alreadyRecorded(r.db, event.TenantID, description, model.EntityLoan, payload.LoanID)
		if err != nil {
			return err
		}
		if recorded {
			return nil
		}

		loanID := payload.LoanID
		deciderID := payload.DecidedBy
		_, err = r.Record(Entry{
			TenantID:    event.TenantID,
			UserID:      &deciderID,
			Description: description,
			SubjectType: model.EntityLoan,
			SubjectID:   &loanID,
			CauserType:  model.EntityUser,
			CauserID:    &deciderID,
			Properties: map[string]interface{}{
				// The borrower is the one notified of the decision.
				"user_id":  payload.BorrowerID,
				"amount":   payload.Amount,
				"currency": payload.Currency,
				"event_id": event.EventID,
			},
		})
		return err
	}
}

// TransactionCompletedHandler records the activity for a settled transaction
func TransactionCompletedHandler(r *Recorder) func(ctx context.Context, event *model.OutboxEvent) error {
	return func(ctx context.Context, event *model.OutboxEvent) error {
		var payload transactionCompletedPayload
		if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", event.Type, err)
		}
		if payload.TransactionID == 0 {
			return fmt.Errorf("%s event %s carries no transaction id", event.Type, event.EventID)
		}

		const description = "transaction completed"
		recorded, err := alreadyRecorded(r.db, event.TenantID, description, model.EntityTransaction, payload.TransactionID)
		if err != nil {
			return err
		}
		if recorded {
			return nil
		}

		transactionID := payload.TransactionID
		_, err = r.Record(Entry{
			TenantID:    event.TenantID,
			Description: description,
			SubjectType: model.EntityTransaction,
			SubjectID:   &transactionID,
			Properties: map[string]interface{}{
				"affected_user_id": payload.AffectedUserID,
				"amount":           payload.Amount,
				"currency":         payload.Currency,
				"provider":         payload.Provider,
				"event_id":         event.EventID,
			},
		})
		return err
	}
}

// alreadyRecorded reports whether the activity for a subject and description
// already exists. Loans are decided once and transactions settle once, so
// this pair identifies the event's activity exactly.
func alreadyRecorded(db *gorm.DB, tenantID uint, description, subjectType string, subjectID uint) (bool, error) {
	var count int64
	result := db.Model(&model.Activity{}).
		Where("tenant_id = ? AND description = ? AND subject_type = ? AND subject_id = ?",
			tenantID, description, subjectType, subjectID).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}
