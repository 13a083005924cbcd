package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oscarfrank/saas-template-sub007/internal/gateway"
	"github.com/oscarfrank/saas-template-sub007/internal/middleware"
	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/internal/outbox"
	"github.com/oscarfrank/saas-template-sub007/pkg/database"
	"github.com/oscarfrank/saas-template-sub007/pkg/logger"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// transactionEventPayload is the outbox payload for completed transactions.
type transactionEventPayload struct {
	TransactionID  uint   `json:"transaction_id"`
	Reference      string `json:"reference"`
	AffectedUserID uint   `json:"affected_user_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Provider       string `json:"provider"`
	Status         string `json:"status"`
}

// InitiatePayment creates a pending transaction, selects the gateway for the
// currency and opens a checkout session at the provider.
func InitiatePayment(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)
	userID, _ := middleware.CurrentUserID(c)

	// Parse request
	var req struct {
		Amount   int64  `json:"amount" validate:"required,gt=0"`
		Currency string `json:"currency" validate:"required,len=3"`
		LoanID   *uint  `json:"loan_id,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse payment request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("incomplete_payment_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount and currency are required"})
	}

	if err := requireActiveCurrency(req.Currency); err != nil {
		if errors.Is(err, errScopedNotFound) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "currency is not supported"})
		}
		log.Error("Failed to check currency", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	// Repayments must reference a loan visible inside this tenant.
	if req.LoanID != nil {
		var loan model.Loan
		if err := firstInTenant(tenantID, *req.LoanID, &loan); err != nil {
			if errors.Is(err, errScopedNotFound) {
				return notFound(c)
			}
			log.Error("Failed to load loan for payment", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	gw, err := payments.Resolve(req.Currency)
	if err != nil {
		log.Error("No usable gateway for currency",
			zap.String("currency", req.Currency),
			zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "no payment provider available for this currency"})
	}
	prometheus.RecordGatewaySelection(string(gw.Name()), req.Currency)

	// Track DB operations
	defer prometheus.TrackDBOperation("insert")(time.Now())

	transaction := model.Transaction{
		Reference: uuid.New().String(),
		TenantID:  tenantID,
		UserID:    userID,
		LoanID:    req.LoanID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Provider:  string(gw.Name()),
		Status:    model.TransactionPending,
	}

	if result := database.GetDB().Create(&transaction); result.Error != nil {
		log.Error("Failed to create transaction", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "payment initiation failed"})
	}

	session, err := gw.Initialize(c.Request().Context(), &transaction)
	if err != nil {
		log.Error("Gateway checkout initialization failed",
			zap.String("provider", string(gw.Name())),
			zap.String("reference", transaction.Reference),
			zap.Error(err))
		database.GetDB().Model(&transaction).Update("status", model.TransactionFailed)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider is unavailable"})
	}

	if result := database.GetDB().Model(&transaction).Update("provider_ref", session.ProviderRef); result.Error != nil {
		log.Error("Failed to store provider reference", zap.Error(result.Error))
	}
	transaction.ProviderRef = session.ProviderRef

	log.Info("Payment initiated",
		zap.String("reference", transaction.Reference),
		zap.String("provider", transaction.Provider),
		zap.String("currency", transaction.Currency),
		zap.Int64("amount", transaction.Amount))

	return c.JSON(http.StatusCreated, echo.Map{
		"transaction": transaction,
		"payment_url": session.PaymentURL,
	})
}

// ListTransactions returns the resolved tenant's transactions, newest first
func ListTransactions(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	var transactions []model.Transaction
	query := database.GetDB().Where("tenant_id = ?", tenantID).Order("id DESC")
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if result := query.Find(&transactions); result.Error != nil {
		log.Error("Failed to list transactions", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve transactions"})
	}

	return c.JSON(http.StatusOK, transactions)
}

// GetTransaction returns a single transaction, scoped to the resolved tenant
func GetTransaction(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)

	id, err := pathID(c, "id")
	if err != nil {
		return notFound(c)
	}

	var transaction model.Transaction
	if err := firstInTenant(tenantID, id, &transaction); err != nil {
		if errors.Is(err, errScopedNotFound) {
			return notFound(c)
		}
		log.Error("Failed to load transaction", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, transaction)
}

// VerifyTransaction asks the provider that handled a pending transaction for
// its final state and settles it. Safe to call repeatedly.
func VerifyTransaction(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)

	id, err := pathID(c, "id")
	if err != nil {
		return notFound(c)
	}

	var transaction model.Transaction
	if err := firstInTenant(tenantID, id, &transaction); err != nil {
		if errors.Is(err, errScopedNotFound) {
			return notFound(c)
		}
		log.Error("Failed to load transaction", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	if transaction.Status != model.TransactionPending {
		return c.JSON(http.StatusOK, transaction)
	}

	gw, ok := payments.Gateway(gateway.Provider(transaction.Provider))
	if !ok {
		log.Error("Transaction references an unregistered provider",
			zap.String("provider", transaction.Provider),
			zap.String("reference", transaction.Reference))
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "payment provider is not configured"})
	}

	result, err := gw.Verify(c.Request().Context(), transaction.Reference)
	if err != nil {
		log.Error("Gateway verification failed",
			zap.String("provider", transaction.Provider),
			zap.String("reference", transaction.Reference),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider is unavailable"})
	}

	status := model.TransactionFailed
	if result.Paid {
		status = model.TransactionSuccessful
	}

	if err := settleTransaction(&transaction, status); err != nil {
		log.Error("Failed to settle transaction", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction update failed"})
	}

	log.Info("Transaction verified",
		zap.String("reference", transaction.Reference),
		zap.String("status", transaction.Status),
		zap.String("raw_status", result.RawStatus))

	return c.JSON(http.StatusOK, transaction)
}

// settleTransaction moves a pending transaction to a terminal status and,
// when it succeeded, appends the completion event in the same transaction.
// The pending guard in the WHERE clause makes settlement idempotent under
// concurrent verification and webhook delivery.
func settleTransaction(transaction *model.Transaction, status string) error {
	defer prometheus.TrackDBOperation("update")(time.Now())

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Transaction{}).
			Where("id = ? AND status = ?", transaction.ID, model.TransactionPending).
			Update("status", status)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// Already settled by a concurrent path.
			return nil
		}

		if status != model.TransactionSuccessful {
			return nil
		}

		return outbox.Append(tx, transaction.TenantID, model.EventTransactionCompleted, transactionEventPayload{
			TransactionID:  transaction.ID,
			Reference:      transaction.Reference,
			AffectedUserID: transaction.UserID,
			Amount:         transaction.Amount,
			Currency:       transaction.Currency,
			Provider:       transaction.Provider,
			Status:         status,
		})
	})
	if err != nil {
		return err
	}

	transaction.Status = status
	return nil
}
