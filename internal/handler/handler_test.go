package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oscarfrank/saas-template-sub007/internal/activity"
	"github.com/oscarfrank/saas-template-sub007/internal/gateway"
	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/pkg/config"
	"github.com/oscarfrank/saas-template-sub007/pkg/database"
	"github.com/oscarfrank/saas-template-sub007/pkg/jwtutil"
)

// fakeGateway is a canned-response Gateway for handler tests.
type fakeGateway struct {
	name       gateway.Provider
	initErr    error
	verifyPaid bool
	verifyErr  error
}

func (f *fakeGateway) Name() gateway.Provider { return f.name }

func (f *fakeGateway) Initialize(ctx context.Context, tx *model.Transaction) (*gateway.CheckoutSession, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &gateway.CheckoutSession{
		ProviderRef: "ref_" + tx.Reference,
		PaymentURL:  "https://pay.example.com/" + tx.Reference,
	}, nil
}

func (f *fakeGateway) Verify(ctx context.Context, reference string) (*gateway.VerificationResult, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &gateway.VerificationResult{Reference: reference, Paid: f.verifyPaid}, nil
}

// setupTest wires an in-memory database, JWT signing and handler
// dependencies with a paystack-only fake gateway.
func setupTest(t *testing.T) (*echo.Echo, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	database.SetDB(db)

	jwtutil.Initialize(&config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1})

	registry := gateway.NewRegistry(
		gateway.Config{PaystackEnabled: true, NGNPriority: gateway.ProviderPaystack},
		&fakeGateway{name: gateway.ProviderPaystack, verifyPaid: true},
	)
	counter := activity.NewCounter(db, zap.NewNop())
	Initialize(registry, counter, activity.NewRecorder(db, counter, zap.NewNop()))

	e := echo.New()
	e.Validator = NewValidator()
	return e, db
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// seedUser creates a verified user with no memberships.
func seedUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	now := time.Now()
	user := model.User{Email: email, Password: "x", VerifiedAt: &now}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

// seedMember creates a verified user who is a member of the tenant.
func seedMember(t *testing.T, db *gorm.DB, email string, tenantID uint, role string) *model.User {
	t.Helper()
	now := time.Now()
	user := model.User{Email: email, Password: "x", VerifiedAt: &now}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&model.UserTenant{
		UserID: user.ID, TenantID: tenantID, Role: role, Active: true,
	}).Error)
	return &user
}

// seedTenant creates an active tenant owned by a fresh verified user.
func seedTenant(t *testing.T, db *gorm.DB, slug string) (*model.Tenant, *model.User) {
	t.Helper()
	now := time.Now()
	owner := model.User{Email: slug + "-owner@example.com", Password: "x", VerifiedAt: &now}
	require.NoError(t, db.Create(&owner).Error)
	tenant := model.Tenant{Slug: slug, Name: slug, OwnerID: owner.ID, Active: true}
	require.NoError(t, db.Create(&tenant).Error)
	require.NoError(t, db.Create(&model.UserTenant{
		UserID: owner.ID, TenantID: tenant.ID, Role: model.RoleOwner, IsDefault: true, Active: true,
	}).Error)
	return &tenant, &owner
}

func seedCurrency(t *testing.T, db *gorm.DB, code string, active bool) {
	t.Helper()
	cur := model.Currency{Code: code, Name: code, Active: active}
	require.NoError(t, db.Create(&cur).Error)
	// The model's default:true tag makes GORM drop a zero-value Active on
	// insert, so store the flag explicitly.
	require.NoError(t, db.Model(&cur).Update("active", active).Error)
}

// tenantContext builds an echo context with the auth and tenant bindings the
// middleware would have set.
func tenantContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, userID uint, tenant *model.Tenant, role string) echo.Context {
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("tenant", tenant)
	c.Set("tenant_id", tenant.ID)
	c.Set("role", role)
	return c
}
