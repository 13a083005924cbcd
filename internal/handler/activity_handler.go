package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/oscarfrank/saas-template-sub007/internal/middleware"
	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/pkg/database"
	"github.com/oscarfrank/saas-template-sub007/pkg/logger"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

const (
	defaultActivityPageSize = 25
	maxActivityPageSize     = 100
)

// ListActivities returns the resolved tenant's activity feed, newest first
func ListActivities(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)

	limit := defaultActivityPageSize
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxActivityPageSize {
		limit = maxActivityPageSize
	}

	offset := 0
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	var activities []model.Activity
	result := database.GetDB().
		Where("tenant_id = ?", tenantID).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&activities)
	if result.Error != nil {
		log.Error("Failed to list activities", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve activities"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"activities": activities,
		"limit":      limit,
		"offset":     offset,
	})
}

// UnreadCount returns the authenticated user's unread activity count in the
// resolved tenant. A user with no counter row reads as zero.
func UnreadCount(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)
	userID, _ := middleware.CurrentUserID(c)

	count, err := counters.Get(tenantID, userID)
	if err != nil {
		log.Error("Failed to read unread counter", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read unread count"})
	}

	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

// MarkActivitiesRead resets the authenticated user's unread counter in the
// resolved tenant to zero
func MarkActivitiesRead(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, _ := middleware.CurrentTenantID(c)
	userID, _ := middleware.CurrentUserID(c)

	if err := counters.Reset(tenantID, userID); err != nil {
		log.Error("Failed to reset unread counter", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark activities read"})
	}

	return c.JSON(http.StatusOK, echo.Map{"unread": 0})
}
