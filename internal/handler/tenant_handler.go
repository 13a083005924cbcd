package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/oscarfrank/saas-template-sub007/internal/middleware"
	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/pkg/database"
	"github.com/oscarfrank/saas-template-sub007/pkg/logger"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL-safe slug from a tenant name
func slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// CreateTenant handles tenant creation. The creator becomes the tenant's
// single owner-role member and the new tenant becomes their default.
func CreateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("create")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		log.Error("Failed to get user ID from context")
		prometheus.RecordAuthError("unauthorized_tenant_creation")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	// Parse request
	var req struct {
		Name        string `json:"name" validate:"required,min=2,max=100"`
		Slug        string `json:"slug,omitempty"`
		Description string `json:"description"`
		Settings    string `json:"settings,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse tenant creation request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("incomplete_tenant_creation")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Name)
	} else {
		slug = slugify(slug)
	}
	if slug == "" {
		prometheus.RecordAuthError("invalid_tenant_slug")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a URL-safe slug could not be derived from the name"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("insert")(time.Now())

	tenant := model.Tenant{
		Slug:        slug,
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     userID,
		Settings:    req.Settings,
		Active:      true,
	}

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&tenant); result.Error != nil {
			return result.Error
		}

		// The owner-role membership is created together with the tenant:
		// every tenant has exactly one owner from the moment it exists.
		membership := model.UserTenant{
			UserID:    userID,
			TenantID:  tenant.ID,
			Role:      model.RoleOwner,
			IsDefault: true,
			Active:    true,
		}
		if result := tx.Create(&membership); result.Error != nil {
			return result.Error
		}

		// The new tenant becomes the creator's current tenant.
		return tx.Model(&model.User{}).Where("id = ?", userID).Update("tenant_id", tenant.ID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(strings.ToLower(err.Error()), "unique") {
			log.Warn("Tenant slug or name already taken", zap.String("slug", slug))
			prometheus.RecordAuthError("tenant_already_exists")
			return c.JSON(http.StatusConflict, echo.Map{"error": "a tenant with this name or slug already exists"})
		}
		log.Error("Failed to create tenant", zap.Error(err))
		prometheus.RecordAuthError("tenant_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant creation failed"})
	}

	log.Info("Tenant created",
		zap.String("slug", tenant.Slug),
		zap.Uint("id", tenant.ID),
		zap.Uint("owner_id", tenant.OwnerID))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Tenant created successfully",
		"tenant":  tenant,
	})
}

// ListUserTenants retrieves all tenants associated with the authenticated user
func ListUserTenants(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("list")

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		log.Error("Failed to get user ID from context")
		prometheus.RecordAuthError("unauthorized_tenant_listing")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	// Get user's tenants through UserTenant associations
	var memberships []model.UserTenant
	if result := database.GetDB().Preload("Tenant").Where("user_id = ? AND active = ?", userID, true).Find(&memberships); result.Error != nil {
		log.Error("Failed to retrieve user's tenants", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve tenants"})
	}

	// Format response
	type TenantResponse struct {
		ID        uint      `json:"id"`
		Slug      string    `json:"slug"`
		Name      string    `json:"name"`
		Role      string    `json:"role"`
		IsDefault bool      `json:"is_default"`
		CreatedAt time.Time `json:"created_at"`
	}

	response := make([]TenantResponse, 0, len(memberships))
	for _, m := range memberships {
		response = append(response, TenantResponse{
			ID:        m.TenantID,
			Slug:      m.Tenant.Slug,
			Name:      m.Tenant.Name,
			Role:      m.Role,
			IsDefault: m.IsDefault,
			CreatedAt: m.Tenant.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, response)
}

// Dashboard resolves which tenant a user lands in when no tenant segment is
// present: the last visited tenant, else the first available membership.
func Dashboard(c echo.Context) error {
	log := logger.FromContext(c)

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		prometheus.RecordAuthError("unauthorized_dashboard")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var user model.User
	if result := database.GetDB().First(&user, userID); result.Error != nil {
		log.Error("Failed to load user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	var tenant model.Tenant
	if user.TenantID != nil {
		result := database.GetDB().Where("id = ? AND active = ?", *user.TenantID, true).First(&tenant)
		if result.Error == nil {
			return c.JSON(http.StatusOK, echo.Map{"tenant": tenant})
		}
	}

	// Fall back to the first tenant the user belongs to.
	var membership model.UserTenant
	result := database.GetDB().Preload("Tenant").
		Where("user_id = ? AND active = ?", userID, true).
		Order("id").First(&membership)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"tenant": nil, "message": "no tenants available"})
		}
		log.Error("Failed to resolve dashboard tenant", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"tenant": membership.Tenant})
}

// GetTenant returns the resolved tenant
func GetTenant(c echo.Context) error {
	prometheus.RecordTenantOperation("access")

	tenant, ok := middleware.CurrentTenant(c)
	if !ok {
		return notFound(c)
	}
	return c.JSON(http.StatusOK, tenant)
}

// AddUserToTenant adds a user to the resolved tenant. Owner only.
func AddUserToTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("add_user")

	tenantID, _ := middleware.CurrentTenantID(c)

	// Parse request
	var req struct {
		UserEmail string `json:"user_email" validate:"required,email"`
		Role      string `json:"role,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse add member request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("incomplete_member_add")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_email is required"})
	}

	// Members join as members; the owner role is only ever assigned at
	// tenant creation.
	if req.Role == "" {
		req.Role = model.RoleMember
	}
	if req.Role != model.RoleMember {
		prometheus.RecordAuthError("invalid_member_role")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "only the member role can be granted"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("query")(time.Now())

	// Find the user by email
	var user model.User
	if result := database.GetDB().Where("email = ?", req.UserEmail).First(&user); result.Error != nil {
		log.Warn("User not found", zap.String("email", req.UserEmail))
		prometheus.RecordAuthError("user_not_found")
		return notFound(c)
	}

	// Check if user is already in the tenant
	var existing model.UserTenant
	result := database.GetDB().Where("user_id = ? AND tenant_id = ?", user.ID, tenantID).First(&existing)
	if result.Error == nil {
		return c.JSON(http.StatusOK, echo.Map{
			"message":     "User is already a member of this tenant",
			"user_tenant": existing,
		})
	}

	membership := model.UserTenant{
		UserID:   user.ID,
		TenantID: tenantID,
		Role:     req.Role,
		Active:   true,
	}

	if err := database.GetDB().Create(&membership).Error; err != nil {
		log.Error("Failed to add user to tenant", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add user to tenant"})
	}

	log.Info("Added user to tenant",
		zap.Uint("tenant_id", tenantID),
		zap.String("user_email", req.UserEmail),
		zap.String("role", req.Role))

	return c.JSON(http.StatusCreated, echo.Map{
		"message":     "User added to tenant successfully",
		"user_tenant": membership,
	})
}

// RemoveUserFromTenant removes a member from the resolved tenant. Owner only;
// the owner themselves cannot be removed.
func RemoveUserFromTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordTenantOperation("remove_user")

	tenant, ok := middleware.CurrentTenant(c)
	if !ok {
		return notFound(c)
	}

	targetUserID, err := pathID(c, "user_id")
	if err != nil {
		prometheus.RecordAuthError("invalid_user_id")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	if tenant.OwnerID == targetUserID {
		log.Warn("Attempted to remove tenant owner",
			zap.Uint("tenant_id", tenant.ID),
			zap.Uint("owner_id", targetUserID))
		prometheus.RecordAuthError("owner_removal_blocked")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied"})
	}

	// Track DB operations
	defer prometheus.TrackDBOperation("delete")(time.Now())

	// Hard delete: a soft-deleted row would still occupy the unique
	// (user_id, tenant_id) index and block the user from ever rejoining.
	result := database.GetDB().Unscoped().Where("user_id = ? AND tenant_id = ?", targetUserID, tenant.ID).Delete(&model.UserTenant{})
	if result.Error != nil {
		log.Error("Failed to remove user from tenant", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove user from tenant"})
	}

	if result.RowsAffected == 0 {
		return notFound(c)
	}

	// If this was the removed user's last visited tenant, point them at
	// another membership, or nothing.
	var user model.User
	if result := database.GetDB().First(&user, targetUserID); result.Error == nil {
		if user.TenantID != nil && *user.TenantID == tenant.ID {
			var other model.UserTenant
			if result := database.GetDB().Where("user_id = ? AND tenant_id != ?", targetUserID, tenant.ID).Order("id").First(&other); result.Error == nil {
				database.GetDB().Model(&user).Update("tenant_id", other.TenantID)
			} else {
				database.GetDB().Model(&user).Update("tenant_id", nil)
			}
		}
	}

	log.Info("Removed user from tenant",
		zap.Uint("tenant_id", tenant.ID),
		zap.Uint("user_id", targetUserID))

	return c.JSON(http.StatusOK, echo.Map{
		"message": "User removed from tenant successfully",
	})
}
