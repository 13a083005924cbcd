package activity

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// ErrInvalidAmount is returned for non-positive decrement amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Counter maintains the per-(tenant, user) unread count. Every mutation is a
// single SQL statement using the database's atomic arithmetic, so concurrent
// increments for the same pair never lose updates.
type Counter struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCounter creates a Counter on top of the given database handle
func NewCounter(db *gorm.DB, log *zap.Logger) *Counter {
	return &Counter{db: db, log: log}
}

// Increment adds one to the pair's unread count, creating the row on first
// use, and returns the new count. Not idempotent: callers must invoke it at
// most once per logical activity.
func (c *Counter) Increment(tenantID, userID uint) (int64, error) {
	prometheus.RecordCounterOperation("increment")
	defer prometheus.TrackDBOperation("update")(time.Now())

	counter := model.ActivityCounter{TenantID: tenantID, UserID: userID, Count: 1}
	result := c.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("activity_counters.count + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(&counter)
	if result.Error != nil {
		return 0, result.Error
	}

	return c.Get(tenantID, userID)
}

// Decrement subtracts amount from the pair's unread count, clamping at zero.
// A missing row is a no-op and reads as zero.
func (c *Counter) Decrement(tenantID, userID uint, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	prometheus.RecordCounterOperation("decrement")
	defer prometheus.TrackDBOperation("update")(time.Now())

	// CASE instead of GREATEST so the same statement runs on sqlite in tests.
	result := c.db.Model(&model.ActivityCounter{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Updates(map[string]interface{}{
			"count":      gorm.Expr("CASE WHEN count >= ? THEN count - ? ELSE 0 END", amount, amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}

	return c.Get(tenantID, userID)
}

// Reset sets the pair's unread count to zero. A missing row is a no-op.
func (c *Counter) Reset(tenantID, userID uint) error {
	prometheus.RecordCounterOperation("reset")
	defer prometheus.TrackDBOperation("update")(time.Now())

	result := c.db.Model(&model.ActivityCounter{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Updates(map[string]interface{}{
			"count":      0,
			"updated_at": time.Now(),
		})
	return result.Error
}

// Get returns the pair's current unread count, zero when no row exists. It
// never creates a row.
func (c *Counter) Get(tenantID, userID uint) (int64, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var counter model.ActivityCounter
	result := c.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(&counter)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return counter.Count, nil
}
