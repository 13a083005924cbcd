package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
)

func TestInitiatePayment(t *testing.T) {
	e, db := setupTest(t)
	seedCurrency(t, db, "NGN", true)
	tenant, _ := seedTenant(t, db, "acme")
	payer := seedMember(t, db, "payer@example.com", tenant.ID, model.RoleMember)

	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/",
		`{"amount":250000,"currency":"NGN"}`), rec, payer.ID, tenant, model.RoleMember)
	require.NoError(t, InitiatePayment(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["payment_url"])

	var transaction model.Transaction
	require.NoError(t, db.First(&transaction).Error)
	assert.Equal(t, tenant.ID, transaction.TenantID)
	assert.Equal(t, payer.ID, transaction.UserID)
	assert.Equal(t, string(model.TransactionPending), transaction.Status)
	assert.Equal(t, "paystack", transaction.Provider)
	assert.NotEmpty(t, transaction.Reference)
	assert.Equal(t, "ref_"+transaction.Reference, transaction.ProviderRef)
}

func TestInitiatePaymentUnsupportedCurrency(t *testing.T) {
	e, db := setupTest(t)
	tenant, _ := seedTenant(t, db, "acme")
	payer := seedMember(t, db, "payer@example.com", tenant.ID, model.RoleMember)

	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/",
		`{"amount":100,"currency":"ZZZ"}`), rec, payer.ID, tenant, model.RoleMember)
	require.NoError(t, InitiatePayment(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var transactions int64
	require.NoError(t, db.Model(&model.Transaction{}).Count(&transactions).Error)
	assert.Equal(t, int64(0), transactions)
}

func TestInitiatePaymentCrossTenantLoan(t *testing.T) {
	e, db := setupTest(t)
	seedCurrency(t, db, "NGN", true)
	acme, _ := seedTenant(t, db, "acme")
	globex, globexOwner := seedTenant(t, db, "globex")

	loan := model.Loan{TenantID: acme.ID, BorrowerID: 1, Amount: 1000, Currency: "NGN", Status: model.LoanApproved}
	require.NoError(t, db.Create(&loan).Error)

	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/",
		fmt.Sprintf(`{"amount":1000,"currency":"NGN","loan_id":%d}`, loan.ID)), rec, globexOwner.ID, globex, model.RoleOwner)
	require.NoError(t, InitiatePayment(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyTransactionSettles(t *testing.T) {
	e, db := setupTest(t)
	tenant, _ := seedTenant(t, db, "acme")
	payer := seedMember(t, db, "payer@example.com", tenant.ID, model.RoleMember)

	transaction := model.Transaction{
		Reference: "txn-1", TenantID: tenant.ID, UserID: payer.ID,
		Amount: 5000, Currency: "NGN", Provider: "paystack",
		Status: model.TransactionPending,
	}
	require.NoError(t, db.Create(&transaction).Error)

	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/", ""), rec, payer.ID, tenant, model.RoleMember)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(transaction.ID))
	require.NoError(t, VerifyTransaction(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.First(&transaction, transaction.ID).Error)
	assert.Equal(t, model.TransactionSuccessful, transaction.Status)

	// Settlement emits the completion event once.
	var events int64
	require.NoError(t, db.Model(&model.OutboxEvent{}).
		Where("type = ?", model.EventTransactionCompleted).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	// A second verification is a no-op.
	rec = httptest.NewRecorder()
	c = tenantContext(e, jsonRequest(http.MethodPost, "/", ""), rec, payer.ID, tenant, model.RoleMember)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(transaction.ID))
	require.NoError(t, VerifyTransaction(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.Model(&model.OutboxEvent{}).
		Where("type = ?", model.EventTransactionCompleted).Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestVerifyTransactionUnregisteredProvider(t *testing.T) {
	e, db := setupTest(t)
	tenant, owner := seedTenant(t, db, "acme")

	transaction := model.Transaction{
		Reference: "txn-2", TenantID: tenant.ID, UserID: owner.ID,
		Amount: 5000, Currency: "USD", Provider: "stripe",
		Status: model.TransactionPending,
	}
	require.NoError(t, db.Create(&transaction).Error)

	// The test registry only carries paystack.
	rec := httptest.NewRecorder()
	c := tenantContext(e, jsonRequest(http.MethodPost, "/", ""), rec, owner.ID, tenant, model.RoleOwner)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(transaction.ID))
	require.NoError(t, VerifyTransaction(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
