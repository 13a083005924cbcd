package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oscarfrank/saas-template-sub007/internal/activity"
	"github.com/oscarfrank/saas-template-sub007/internal/middleware"
	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/internal/outbox"
	"github.com/oscarfrank/saas-template-sub007/pkg/database"
	"github.com/oscarfrank/saas-template-sub007/pkg/logger"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// loanEventPayload is the outbox payload for loan decision events.
type loanEventPayload struct {
	LoanID     uint   `json:"loan_id"`
	BorrowerID uint   `json:"borrower_id"`
	DecidedBy  uint   `json:"decided_by"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

// CreateLoan raises a loan request in the resolved tenant for the
// authenticated user.
func CreateLoan(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)
	userID, _ := middleware.CurrentUserID(c)

	// Parse request
	var req struct {
		Amount   int64  `json:"amount" validate:"required,gt=0"`
		Currency string `json:"currency" validate:"required,len=3"`
		Purpose  string `json:"purpose"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse loan request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("incomplete_loan_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount and currency are required"})
	}

	if err := requireActiveCurrency(req.Currency); err != nil {
		if errors.Is(err, errScopedNotFound) {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "currency is not supported"})
		}
		log.Error("Failed to check currency", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("insert")(time.Now())

	loan := model.Loan{
		TenantID:   tenantID,
		BorrowerID: userID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Purpose:    req.Purpose,
		Status:     model.LoanPending,
	}

	if result := database.GetDB().Create(&loan); result.Error != nil {
		log.Error("Failed to create loan", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "loan creation failed"})
	}

	loanID := loan.ID
	causerID := userID
	if _, err := recorder.Record(activity.Entry{
		TenantID:    tenantID,
		UserID:      &causerID,
		Description: "loan requested",
		SubjectType: model.EntityLoan,
		SubjectID:   &loanID,
		CauserType:  model.EntityUser,
		CauserID:    &causerID,
		Properties: map[string]interface{}{
			"amount":   loan.Amount,
			"currency": loan.Currency,
		},
	}); err != nil {
		log.Error("Failed to record loan activity", zap.Error(err))
	}

	log.Info("Loan created",
		zap.Uint("loan_id", loan.ID),
		zap.Uint("tenant_id", tenantID),
		zap.Int64("amount", loan.Amount),
		zap.String("currency", loan.Currency))

	return c.JSON(http.StatusCreated, loan)
}

// ListLoans returns the resolved tenant's loans, newest first
func ListLoans(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	var loans []model.Loan
	query := database.GetDB().Where("tenant_id = ?", tenantID).Order("id DESC")
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if result := query.Find(&loans); result.Error != nil {
		log.Error("Failed to list loans", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve loans"})
	}

	return c.JSON(http.StatusOK, loans)
}

// GetLoan returns a single loan, scoped to the resolved tenant
func GetLoan(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)

	id, err := pathID(c, "id")
	if err != nil {
		return notFound(c)
	}

	var loan model.Loan
	if err := firstInTenant(tenantID, id, &loan); err != nil {
		if errors.Is(err, errScopedNotFound) {
			return notFound(c)
		}
		log.Error("Failed to load loan", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, loan)
}

// ApproveLoan approves a pending loan. Owner only.
func ApproveLoan(c echo.Context) error {
	return decideLoan(c, model.LoanApproved, model.EventLoanApproved)
}

// RejectLoan rejects a pending loan. Owner only.
func RejectLoan(c echo.Context) error {
	return decideLoan(c, model.LoanRejected, model.EventLoanRejected)
}

// decideLoan moves a pending loan to a terminal status and appends the
// matching domain event in the same transaction. Only pending loans can be
// decided; a second decision reads as a conflict.
func decideLoan(c echo.Context, status string, eventType string) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)
	deciderID, _ := middleware.CurrentUserID(c)

	id, err := pathID(c, "id")
	if err != nil {
		return notFound(c)
	}

	var loan model.Loan
	if err := firstInTenant(tenantID, id, &loan); err != nil {
		if errors.Is(err, errScopedNotFound) {
			return notFound(c)
		}
		log.Error("Failed to load loan", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	if loan.Status != model.LoanPending {
		log.Warn("Loan already decided",
			zap.Uint("loan_id", loan.ID),
			zap.String("status", loan.Status))
		return c.JSON(http.StatusConflict, echo.Map{"error": "loan has already been decided"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("update")(time.Now())

	now := time.Now()
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		// Re-check the status under the transaction so two concurrent
		// decisions cannot both pass the pending check.
		result := tx.Model(&model.Loan{}).
			Where("id = ? AND tenant_id = ? AND status = ?", loan.ID, tenantID, model.LoanPending).
			Updates(map[string]interface{}{
				"status":     status,
				"decided_by": deciderID,
				"decided_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return outbox.Append(tx, tenantID, eventType, loanEventPayload{
			LoanID:     loan.ID,
			BorrowerID: loan.BorrowerID,
			DecidedBy:  deciderID,
			Amount:     loan.Amount,
			Currency:   loan.Currency,
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "loan has already been decided"})
		}
		log.Error("Failed to decide loan", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "loan decision failed"})
	}

	loan.Status = status
	loan.DecidedBy = &deciderID
	loan.DecidedAt = &now

	log.Info("Loan decided",
		zap.Uint("loan_id", loan.ID),
		zap.String("status", status),
		zap.Uint("decided_by", deciderID))

	return c.JSON(http.StatusOK, loan)
}

// requireActiveCurrency verifies the currency exists and is active.
// Returns errScopedNotFound when it is unknown or disabled.
func requireActiveCurrency(code string) error {
	var currency model.Currency
	result := database.GetDB().Where("code = ? AND active = ?", code, true).First(&currency)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return errScopedNotFound
		}
		return result.Error
	}
	return nil
}
