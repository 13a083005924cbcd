package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Activity{}, &model.ActivityCounter{}))
	return db
}

func TestCounterGetWithoutRow(t *testing.T) {
	counter := NewCounter(setupTestDB(t), zap.NewNop())

	count, err := counter.Get(1, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Get never creates a row.
	var rows int64
	require.NoError(t, counter.db.Model(&model.ActivityCounter{}).Count(&rows).Error)
	assert.Equal(t, int64(0), rows)
}

func TestCounterIncrement(t *testing.T) {
	counter := NewCounter(setupTestDB(t), zap.NewNop())

	for i := 1; i <= 5; i++ {
		count, err := counter.Increment(1, 42)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}

	count, err := counter.Get(1, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	// Counts are isolated per (tenant, user) pair.
	count, err = counter.Get(2, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = counter.Increment(1, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCounterDecrement(t *testing.T) {
	counter := NewCounter(setupTestDB(t), zap.NewNop())

	_, err := counter.Increment(1, 42)
	require.NoError(t, err)
	_, err = counter.Increment(1, 42)
	require.NoError(t, err)

	count, err := counter.Decrement(1, 42, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Clamped at zero, even for amounts larger than the stored count.
	count, err = counter.Decrement(1, 42, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCounterDecrementWithoutRow(t *testing.T) {
	counter := NewCounter(setupTestDB(t), zap.NewNop())

	count, err := counter.Decrement(7, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCounterDecrementRejectsNonPositiveAmount(t *testing.T) {
	counter := NewCounter(setupTestDB(t), zap.NewNop())

	_, err := counter.Decrement(1, 42, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = counter.Decrement(1, 42, -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCounterReset(t *testing.T) {
	counter := NewCounter(setupTestDB(t), zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := counter.Increment(1, 42)
		require.NoError(t, err)
	}

	require.NoError(t, counter.Reset(1, 42))

	count, err := counter.Get(1, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCounterResetWithoutRow(t *testing.T) {
	counter := NewCounter(setupTestDB(t), zap.NewNop())

	require.NoError(t, counter.Reset(9, 9))

	count, err := counter.Get(9, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
