package activity

import (
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// Entry describes an activity to be recorded. Subject and causer are tagged
// polymorphic references: a type tag from model (EntityUser, EntityLoan, ...)
// plus a numeric ID.
type Entry struct {
	TenantID    uint
	UserID      *uint // user the activity is recorded under, usually the actor
	Description string
	SubjectType string
	SubjectID   *uint
	CauserType  string
	CauserID    *uint
	Properties  map[string]interface{}
}

// Recorder writes immutable activity rows and bumps the affected user's
// unread counter. Counter failures are logged and swallowed: recording an
// activity must never fail the operation it annotates.
type Recorder struct {
	db      *gorm.DB
	counter *Counter
	log     *zap.Logger
}

// NewRecorder creates a Recorder
func NewRecorder(db *gorm.DB, counter *Counter, log *zap.Logger) *Recorder {
	return &Recorder{db: db, counter: counter, log: log}
}

// Record persists the entry and increments the resolved affected user's
// unread count. The increment happens only on creation, which is what keeps
// it at-most-once per logical activity.
func (r *Recorder) Record(e Entry) (*model.Activity, error) {
	defer prometheus.TrackDBOperation("insert")(time.Now())

	properties := "{}"
	if len(e.Properties) > 0 {
		data, err := json.Marshal(e.Properties)
		if err != nil {
			r.log.Warn("Failed to encode activity properties, storing empty bag",
				zap.String("description", e.Description),
				zap.Error(err))
		} else {
			properties = string(data)
		}
	}

	activity := model.Activity{
		TenantID:    e.TenantID,
		UserID:      e.UserID,
		Description: e.Description,
		SubjectType: e.SubjectType,
		SubjectID:   e.SubjectID,
		CauserType:  e.CauserType,
		CauserID:    e.CauserID,
		Properties:  properties,
	}

	if result := r.db.Create(&activity); result.Error != nil {
		return nil, result.Error
	}

	r.notify(&e)

	return &activity, nil
}

// notify resolves the affected user and bumps their counter. Every skip or
// error path is logged, never returned.
func (r *Recorder) notify(e *Entry) {
	affected := resolveAffectedUser(e)
	if affected == nil {
		r.log.Debug("No affected user resolved for activity, skipping counter",
			zap.String("description", e.Description))
		return
	}
	if e.TenantID == 0 {
		r.log.Debug("No tenant resolved for activity, skipping counter",
			zap.String("description", e.Description))
		return
	}

	count, err := r.counter.Increment(e.TenantID, *affected)
	if err != nil {
		r.log.Error("Failed to increment unread counter",
			zap.Uint("tenant_id", e.TenantID),
			zap.Uint("user_id", *affected),
			zap.Error(err))
		return
	}

	r.log.Debug("Unread counter incremented",
		zap.Uint("tenant_id", e.TenantID),
		zap.Uint("user_id", *affected),
		zap.Int64("count", count))
}

// resolveAffectedUser decides who gets the unread increment for an entry.
// Rules are evaluated in strict priority order:
//
//  1. an explicit affected_user_id property
//  2. the subject, when the subject is a user
//  3. the causer, when the causer is a user other than the entry's own user
//  4. for loan activities: a user_id property, then a user causer
//  5. nobody
func resolveAffectedUser(e *Entry) *uint {
	if id, ok := propertyUint(e.Properties, "affected_user_id"); ok {
		return &id
	}

	if e.SubjectType == model.EntityUser && e.SubjectID != nil {
		id := *e.SubjectID
		return &id
	}

	if e.CauserType == model.EntityUser && e.CauserID != nil {
		if e.UserID == nil || *e.CauserID != *e.UserID {
			id := *e.CauserID
			return &id
		}
	}

	if strings.Contains(strings.ToLower(e.Description), "loan") {
		if id, ok := propertyUint(e.Properties, "user_id"); ok {
			return &id
		}
		if e.CauserType == model.EntityUser && e.CauserID != nil {
			id := *e.CauserID
			return &id
		}
	}

	return nil
}

// propertyUint reads a numeric property from the bag. Values that went
// through JSON decoding arrive as float64.
func propertyUint(props map[string]interface{}, key string) (uint, bool) {
	if props == nil {
		return 0, false
	}
	switch v := props[key].(type) {
	case uint:
		return v, true
	case int:
		if v >= 0 {
			return uint(v), true
		}
	case int64:
		if v >= 0 {
			return uint(v), true
		}
	case float64:
		if v >= 0 && v == float64(uint(v)) {
			return uint(v), true
		}
	case json.Number:
		if i, err := v.Int64(); err == nil && i >= 0 {
			return uint(i), true
		}
	}
	return 0, false
}
