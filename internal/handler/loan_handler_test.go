package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
)

func TestCreateLoan(t *testing.T) {
	e, db := setupTest(t)
	seedCurrency(t, db, "USD", true)
	tenant, _ := seedTenant(t, db, "acme")
	borrower := seedMember(t, db, "borrower@example.com", tenant.ID, model.RoleMember)

	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/",
		`{"amount":50000,"currency":"USD","purpose":"inventory"}`), rec, borrower.ID, tenant, model.RoleMember)
	require.NoError(t, CreateLoan(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var loan model.Loan
	require.NoError(t, db.First(&loan).Error)
	assert.Equal(t, tenant.ID, loan.TenantID)
	assert.Equal(t, borrower.ID, loan.BorrowerID)
	assert.Equal(t, model.LoanPending, loan.Status)

	// Creation leaves an activity trail.
	var activities int64
	require.NoError(t, db.Model(&model.Activity{}).Where("tenant_id = ?", tenant.ID).Count(&activities).Error)
	assert.Equal(t, int64(1), activities)
}

func TestCreateLoanUnknownCurrency(t *testing.T) {
	e, db := setupTest(t)
	tenant, _ := seedTenant(t, db, "acme")
	borrower := seedMember(t, db, "borrower@example.com", tenant.ID, model.RoleMember)

	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/",
		`{"amount":50000,"currency":"XXX"}`), rec, borrower.ID, tenant, model.RoleMember)
	require.NoError(t, CreateLoan(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateLoanInactiveCurrency(t *testing.T) {
	e, db := setupTest(t)
	seedCurrency(t, db, "USD", false)
	tenant, _ := seedTenant(t, db, "acme")
	borrower := seedMember(t, db, "borrower@example.com", tenant.ID, model.RoleMember)

	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/",
		`{"amount":50000,"currency":"USD"}`), rec, borrower.ID, tenant, model.RoleMember)
	require.NoError(t, CreateLoan(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGetLoanCrossTenantReadsAsAbsent(t *testing.T) {
	e, db := setupTest(t)
	seedCurrency(t, db, "USD", true)
	acme, _ := seedTenant(t, db, "acme")
	globex, globexOwner := seedTenant(t, db, "globex")

	loan := model.Loan{TenantID: acme.ID, BorrowerID: 1, Amount: 1000, Currency: "USD", Status: model.LoanPending}
	require.NoError(t, db.Create(&loan).Error)

	// A member of globex requesting acme's loan by ID sees a plain 404.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := tenantContext(e, req, rec, globexOwner.ID, globex, model.RoleOwner)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(loan.ID))
	require.NoError(t, GetLoan(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The same ID inside the owning tenant resolves.
	rec = httptest.NewRecorder()
	c = tenantContext(e, httptest.NewRequest(http.MethodGet, "/", nil), rec, 1, acme, model.RoleOwner)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(loan.ID))
	require.NoError(t, GetLoan(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApproveLoan(t *testing.T) {
	e, db := setupTest(t)
	seedCurrency(t, db, "USD", true)
	tenant, owner := seedTenant(t, db, "acme")
	borrower := seedMember(t, db, "borrower@example.com", tenant.ID, model.RoleMember)

	loan := model.Loan{TenantID: tenant.ID, BorrowerID: borrower.ID, Amount: 1000, Currency: "USD", Status: model.LoanPending}
	require.NoError(t, db.Create(&loan).Error)

	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/", ""), rec, owner.ID, tenant, model.RoleOwner)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(loan.ID))
	require.NoError(t, ApproveLoan(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.First(&loan, loan.ID).Error)
	assert.Equal(t, model.LoanApproved, loan.Status)
	require.NotNil(t, loan.DecidedBy)
	assert.Equal(t, owner.ID, *loan.DecidedBy)
	assert.NotNil(t, loan.DecidedAt)

	// The decision and its domain event commit together.
	var event model.OutboxEvent
	require.NoError(t, db.Where("type = ?", model.EventLoanApproved).First(&event).Error)
	assert.Equal(t, tenant.ID, event.TenantID)
	assert.Contains(t, event.Payload, fmt.Sprintf(`"loan_id":%d`, loan.ID))
	assert.Contains(t, event.Payload, fmt.Sprintf(`"borrower_id":%d`, borrower.ID))
}

func TestDecideLoanTwiceConflicts(t *testing.T) {
	e, db := setupTest(t)
	tenant, owner := seedTenant(t, db, "acme")

	loan := model.Loan{TenantID: tenant.ID, BorrowerID: 1, Amount: 1000, Currency: "USD", Status: model.LoanPending}
	require.NoError(t, db.Create(&loan).Error)

	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/", ""), rec, owner.ID, tenant, model.RoleOwner)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(loan.ID))
	require.NoError(t, ApproveLoan(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// A second decision, even the opposite one, is a conflict.
	rec = httptest.NewRecorder()
	c = tenantContext(e, jsonRequest(http.MethodPost, "/", ""), rec, owner.ID, tenant, model.RoleOwner)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(loan.ID))
	require.NoError(t, RejectLoan(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, db.First(&loan, loan.ID).Error)
	assert.Equal(t, model.LoanApproved, loan.Status)

	// Only the first decision produced an event.
	var events int64
	require.NoError(t, db.Model(&model.OutboxEvent{}).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestListLoansScopedToTenant(t *testing.T) {
	e, db := setupTest(t)
	acme, acmeOwner := seedTenant(t, db, "acme")
	globex, _ := seedTenant(t, db, "globex")

	require.NoError(t, db.Create(&model.Loan{TenantID: acme.ID, BorrowerID: 1, Amount: 100, Currency: "USD", Status: model.LoanPending}).Error)
	require.NoError(t, db.Create(&model.Loan{TenantID: globex.ID, BorrowerID: 2, Amount: 200, Currency: "USD", Status: model.LoanPending}).Error)

	rec := httptest.NewRecorder()
	c := tenantContext(e, httptest.NewRequest(http.MethodGet, "/", nil), rec, acmeOwner.ID, acme, model.RoleOwner)
	require.NoError(t, ListLoans(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var loans []model.Loan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loans))
	require.Len(t, loans, 1)
	assert.Equal(t, acme.ID, loans[0].TenantID)
}
