package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oscarfrank/saas-template-sub007/internal/gateway"
	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/pkg/database"
	"github.com/oscarfrank/saas-template-sub007/pkg/logger"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// webhookNotice is the provider-neutral view of a webhook payload: which
// event it is, and which of our transaction references it settles.
type webhookNotice struct {
	EventID   string
	EventType string
	Reference string
	Paid      bool
}

// StripeWebhook receives Stripe event notifications
func StripeWebhook(c echo.Context) error {
	return handleWebhook(c, string(gateway.ProviderStripe), parseStripeEvent)
}

// PaystackWebhook receives Paystack event notifications
func PaystackWebhook(c echo.Context) error {
	return handleWebhook(c, string(gateway.ProviderPaystack), parsePaystackEvent)
}

// FlutterwaveWebhook receives Flutterwave event notifications
func FlutterwaveWebhook(c echo.Context) error {
	return handleWebhook(c, string(gateway.ProviderFlutterwave), parseFlutterwaveEvent)
}

// handleWebhook stores the raw event with its dedup key, then settles the
// referenced transaction. A redelivered event hits the unique
// (provider, provider_event_id) index and is acknowledged without effect.
func handleWebhook(c echo.Context, provider string, parse func([]byte) (*webhookNotice, error)) error {
	log := logger.FromContext(c).With(zap.String("provider", provider))

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		log.Warn("Failed to read webhook body", zap.Error(err))
		prometheus.RecordWebhook(provider, "unreadable")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	notice, err := parse(body)
	if err != nil {
		log.Warn("Failed to parse webhook payload", zap.Error(err))
		prometheus.RecordWebhook(provider, "malformed")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("insert")(time.Now())

	event := model.WebhookEvent{
		Provider:        provider,
		ProviderEventID: notice.EventID,
		EventType:       notice.EventType,
		Payload:         string(body),
	}

	result := database.GetDB().Clauses(clause.OnConflict{DoNothing: true}).Create(&event)
	if result.Error != nil {
		log.Error("Failed to store webhook event", zap.Error(result.Error))
		prometheus.RecordWebhook(provider, "storage_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if result.RowsAffected == 0 {
		log.Info("Duplicate webhook event, acknowledging",
			zap.String("event_id", notice.EventID))
		prometheus.RecordWebhook(provider, "duplicate")
		return c.JSON(http.StatusOK, echo.Map{"message": "already processed"})
	}

	if err := processWebhook(notice); err != nil {
		log.Error("Failed to process webhook event",
			zap.String("event_id", notice.EventID),
			zap.Error(err))
		database.GetDB().Model(&event).Update("processing_error", err.Error())
		prometheus.RecordWebhook(provider, "failed")
		// The event is stored; the provider should not retry a payload we
		// cannot act on.
		return c.JSON(http.StatusOK, echo.Map{"message": "received"})
	}

	now := time.Now()
	database.GetDB().Model(&event).Update("processed_at", now)
	prometheus.RecordWebhook(provider, "processed")

	log.Info("Webhook processed",
		zap.String("event_id", notice.EventID),
		zap.String("event_type", notice.EventType),
		zap.String("reference", notice.Reference))

	return c.JSON(http.StatusOK, echo.Map{"message": "processed"})
}

// processWebhook settles the transaction the notice refers to
func processWebhook(notice *webhookNotice) error {
	if notice.Reference == "" {
		return errors.New("webhook carries no transaction reference")
	}

	var transaction model.Transaction
	result := database.GetDB().Where("reference = ?", notice.Reference).First(&transaction)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("unknown transaction reference %q", notice.Reference)
		}
		return result.Error
	}

	status := model.TransactionFailed
	if notice.Paid {
		status = model.TransactionSuccessful
	}
	return settleTransaction(&transaction, status)
}

func parseStripeEvent(body []byte) (*webhookNotice, error) {
	var payload struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ClientReferenceID string `json:"client_reference_id"`
				PaymentStatus     string `json:"payment_status"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.ID == "" || payload.Type == "" {
		return nil, errors.New("missing event id or type")
	}
	return &webhookNotice{
		EventID:   payload.ID,
		EventType: payload.Type,
		Reference: payload.Data.Object.ClientReferenceID,
		Paid:      payload.Type == "checkout.session.completed" && payload.Data.Object.PaymentStatus == "paid",
	}, nil
}

func parsePaystackEvent(body []byte) (*webhookNotice, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			ID        int64  `json:"id"`
			Reference string `json:"reference"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Event == "" || payload.Data.ID == 0 {
		return nil, errors.New("missing event name or data id")
	}
	return &webhookNotice{
		EventID:   fmt.Sprintf("%d", payload.Data.ID),
		EventType: payload.Event,
		Reference: payload.Data.Reference,
		Paid:      payload.Event == "charge.success" && payload.Data.Status == "success",
	}, nil
}

func parseFlutterwaveEvent(body []byte) (*webhookNotice, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			ID     int64  `json:"id"`
			TxRef  string `json:"tx_ref"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Event == "" || payload.Data.ID == 0 {
		return nil, errors.New("missing event name or data id")
	}
	return &webhookNotice{
		EventID:   fmt.Sprintf("%d", payload.Data.ID),
		EventType: payload.Event,
		Reference: payload.Data.TxRef,
		Paid:      payload.Event == "charge.completed" && payload.Data.Status == "successful",
	}, nil
}
