package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/pkg/database"
	"github.com/oscarfrank/saas-template-sub007/pkg/logger"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// TenantResolver resolves the :tenant path segment and gates access to it.
// Resolution order is exact ID match, then slug. An unknown or inactive
// tenant reads as a plain 404 so non-members can't probe which tenants
// exist; an authenticated non-member of a resolved tenant gets 403.
//
// On success the tenant, its ID and the caller's membership role are bound
// into the request context, and the user's last visited tenant is refreshed.
// Must run after AuthMiddleware.
func TenantResolver(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)
		prometheus.RecordTenantOperation("resolve")

		userID, ok := CurrentUserID(c)
		if !ok {
			log.Error("Tenant resolver reached without authenticated user")
			prometheus.RecordAuthError("missing_principal")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}

		segment := c.Param("tenant")
		if segment == "" {
			prometheus.RecordAuthError("missing_tenant_segment")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}

		tenant, err := resolveTenant(database.GetDB(), segment)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Error("Tenant lookup failed", zap.String("segment", segment), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			log.Warn("Unknown tenant segment", zap.String("segment", segment))
			prometheus.RecordAuthError("tenant_not_found")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}

		// Email verification is part of the access gate: unverified users
		// can authenticate but not enter a tenant.
		var user model.User
		if result := database.GetDB().First(&user, userID); result.Error != nil {
			log.Error("Failed to load principal", zap.Uint("user_id", userID), zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		if !user.Verified() {
			log.Warn("Unverified user attempted tenant access", zap.Uint("user_id", userID))
			prometheus.RecordAuthError("email_not_verified")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "email verification required"})
		}

		// Membership check: the tenant exists, so a non-member sees 403.
		var membership model.UserTenant
		result := database.GetDB().
			Where("user_id = ? AND tenant_id = ? AND active = ?", userID, tenant.ID, true).
			First(&membership)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				log.Error("Membership lookup failed", zap.Error(result.Error))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			log.Warn("Non-member attempted tenant access",
				zap.Uint("user_id", userID),
				zap.Uint("tenant_id", tenant.ID))
			prometheus.RecordAuthError("membership_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		}

		// Remember this as the user's last visited tenant. Best effort: a
		// failure here must not fail the request.
		if user.TenantID == nil || *user.TenantID != tenant.ID {
			if err := database.GetDB().Model(&user).Update("tenant_id", tenant.ID).Error; err != nil {
				log.Warn("Failed to update last visited tenant", zap.Error(err))
			}
		}

		c.Set("tenant", tenant)
		c.Set("tenant_id", tenant.ID)
		c.Set("role", membership.Role)

		c.Set("logger", log.With(
			zap.Uint("tenant_id", tenant.ID),
			zap.String("tenant_slug", tenant.Slug),
			zap.String("role", membership.Role),
		))

		return next(c)
	}
}

// RequireOwner restricts a route to members holding the owner role.
// Must run after TenantResolver.
func RequireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, _ := c.Get("role").(string)
		if role != model.RoleOwner {
			logger.FromContext(c).Warn("Owner-only route denied", zap.String("role", role))
			prometheus.RecordAuthError("role_denied")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
		}
		return next(c)
	}
}

// resolveTenant looks the segment up as a numeric ID first, then as a slug.
// Inactive tenants are indistinguishable from absent ones.
func resolveTenant(db *gorm.DB, segment string) (*model.Tenant, error) {
	var tenant model.Tenant

	if id, err := strconv.ParseUint(segment, 10, 32); err == nil {
		result := db.Where("id = ? AND active = ?", uint(id), true).First(&tenant)
		if result.Error == nil {
			return &tenant, nil
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, result.Error
		}
		// Fall through to the slug lookup: an all-digit slug is legal.
	}

	result := db.Where("slug = ? AND active = ?", segment, true).First(&tenant)
	if result.Error != nil {
		return nil, result.Error
	}
	return &tenant, nil
}

// CurrentTenant returns the resolved tenant from the context
func CurrentTenant(c echo.Context) (*model.Tenant, bool) {
	tenant, ok := c.Get("tenant").(*model.Tenant)
	return tenant, ok
}

// CurrentTenantID returns the resolved tenant's ID from the context
func CurrentTenantID(c echo.Context) (uint, bool) {
	tenantID, ok := c.Get("tenant_id").(uint)
	return tenantID, ok
}
