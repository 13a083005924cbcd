package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
)

func uintPtr(v uint) *uint { return &v }

func setupRecorder(t *testing.T) (*Recorder, *Counter) {
	t.Helper()
	db := setupTestDB(t)
	counter := NewCounter(db, zap.NewNop())
	return NewRecorder(db, counter, zap.NewNop()), counter
}

func TestRecordPersistsActivity(t *testing.T) {
	recorder, _ := setupRecorder(t)

	a, err := recorder.Record(Entry{
		TenantID:    1,
		UserID:      uintPtr(10),
		Description: "transaction completed",
		SubjectType: model.EntityTransaction,
		SubjectID:   uintPtr(5),
		Properties:  map[string]interface{}{"amount": 2500},
	})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)
	assert.Equal(t, uint(1), a.TenantID)
	assert.JSONEq(t, `{"amount":2500}`, a.Properties)
}

func TestAffectedUserExplicitProperty(t *testing.T) {
	recorder, counter := setupRecorder(t)

	// affected_user_id outranks a user subject.
	_, err := recorder.Record(Entry{
		TenantID:    1,
		Description: "member invited",
		SubjectType: model.EntityUser,
		SubjectID:   uintPtr(99),
		Properties:  map[string]interface{}{"affected_user_id": float64(42)},
	})
	require.NoError(t, err)

	count, err := counter.Get(1, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = counter.Get(1, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestAffectedUserFromUserSubject(t *testing.T) {
	recorder, counter := setupRecorder(t)

	_, err := recorder.Record(Entry{
		TenantID:    1,
		Description: "member removed",
		SubjectType: model.EntityUser,
		SubjectID:   uintPtr(7),
	})
	require.NoError(t, err)

	count, err := counter.Get(1, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAffectedUserFromDistinctCauser(t *testing.T) {
	recorder, counter := setupRecorder(t)

	_, err := recorder.Record(Entry{
		TenantID:    1,
		UserID:      uintPtr(10),
		Description: "settings changed",
		SubjectType: model.EntityTenant,
		SubjectID:   uintPtr(1),
		CauserType:  model.EntityUser,
		CauserID:    uintPtr(11),
	})
	require.NoError(t, err)

	count, err := counter.Get(1, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAffectedUserCauserSameAsEntryUserSkipped(t *testing.T) {
	recorder, counter := setupRecorder(t)

	// The causer is the entry's own user and nothing else matches: nobody
	// gets notified.
	_, err := recorder.Record(Entry{
		TenantID:    1,
		UserID:      uintPtr(10),
		Description: "profile updated",
		SubjectType: model.EntityTenant,
		SubjectID:   uintPtr(1),
		CauserType:  model.EntityUser,
		CauserID:    uintPtr(10),
	})
	require.NoError(t, err)

	count, err := counter.Get(1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestAffectedUserLoanDescriptionUsesUserIDProperty(t *testing.T) {
	recorder, counter := setupRecorder(t)

	_, err := recorder.Record(Entry{
		TenantID:    1,
		UserID:      uintPtr(10),
		Description: "Loan approved",
		SubjectType: model.EntityLoan,
		SubjectID:   uintPtr(3),
		CauserType:  model.EntityUser,
		CauserID:    uintPtr(10),
		Properties:  map[string]interface{}{"user_id": float64(21)},
	})
	require.NoError(t, err)

	count, err := counter.Get(1, 21)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAffectedUserLoanDescriptionFallsBackToCauser(t *testing.T) {
	recorder, counter := setupRecorder(t)

	// Same-user causers are skipped by rule 3, but the loan rule still
	// accepts them when no user_id property is present.
	_, err := recorder.Record(Entry{
		TenantID:    1,
		UserID:      uintPtr(10),
		Description: "loan repayment received",
		SubjectType: model.EntityLoan,
		SubjectID:   uintPtr(3),
		CauserType:  model.EntityUser,
		CauserID:    uintPtr(10),
	})
	require.NoError(t, err)

	count, err := counter.Get(1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNoAffectedUserNoIncrement(t *testing.T) {
	recorder, _ := setupRecorder(t)

	_, err := recorder.Record(Entry{
		TenantID:    1,
		Description: "tenant created",
		SubjectType: model.EntityTenant,
		SubjectID:   uintPtr(1),
	})
	require.NoError(t, err)

	var rows int64
	require.NoError(t, recorder.db.Model(&model.ActivityCounter{}).Count(&rows).Error)
	assert.Equal(t, int64(0), rows)
}
