package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
)

func TestActivityUnreadAndMarkRead(t *testing.T) {
	e, db := setupTest(t)
	tenant, _ := seedTenant(t, db, "acme")
	member := seedMember(t, db, "member@example.com", tenant.ID, model.RoleMember)

	_, err := counters.Increment(tenant.ID, member.ID)
	require.NoError(t, err)
	_, err = counters.Increment(tenant.ID, member.ID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c := tenantContext(e, httptest.NewRequest(http.MethodGet, "/", nil), rec, member.ID, tenant, model.RoleMember)
	require.NoError(t, UnreadCount(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unread":2`)

	rec = httptest.NewRecorder()
	c = tenantContext(e, httptest.NewRequest(http.MethodPost, "/", nil), rec, member.ID, tenant, model.RoleMember)
	require.NoError(t, MarkActivitiesRead(c))
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := counters.Get(tenant.ID, member.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestUnreadCountIsPerTenant(t *testing.T) {
	e, db := setupTest(t)
	acme, _ := seedTenant(t, db, "acme")
	globex, _ := seedTenant(t, db, "globex")
	member := seedMember(t, db, "member@example.com", acme.ID, model.RoleMember)
	require.NoError(t, db.Create(&model.UserTenant{
		UserID: member.ID, TenantID: globex.ID, Role: model.RoleMember, Active: true,
	}).Error)

	_, err := counters.Increment(acme.ID, member.ID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c := tenantContext(e, httptest.NewRequest(http.MethodGet, "/", nil), rec, member.ID, globex, model.RoleMember)
	require.NoError(t, UnreadCount(c))
	assert.Contains(t, rec.Body.String(), `"unread":0`)
}

func TestListActivitiesScopedAndPaged(t *testing.T) {
	e, db := setupTest(t)
	acme, owner := seedTenant(t, db, "acme")
	globex, _ := seedTenant(t, db, "globex")

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&model.Activity{
			TenantID: acme.ID, Description: "loan requested", Properties: "{}",
		}).Error)
	}
	require.NoError(t, db.Create(&model.Activity{
		TenantID: globex.ID, Description: "loan requested", Properties: "{}",
	}).Error)

	rec := httptest.NewRecorder()
	c := tenantContext(e, httptest.NewRequest(http.MethodGet, "/?limit=2", nil), rec, owner.ID, acme, model.RoleOwner)
	require.NoError(t, ListActivities(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	activities := body["activities"].([]interface{})
	assert.Len(t, activities, 2)
}
