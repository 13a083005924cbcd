package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/oscarfrank/saas-template-sub007/pkg/database"
)

// errScopedNotFound means the entity does not exist in the resolved tenant.
// Whether the row exists in another tenant is deliberately not observable.
var errScopedNotFound = errors.New("entity not found in tenant")

// firstInTenant loads an entity by primary key with the tenant guard applied:
// a row whose tenant_id differs from the resolved tenant reads as absent.
// This closes the cross-tenant access class where IDs are guessable.
func firstInTenant(tenantID uint, id uint, dest interface{}) error {
	result := database.GetDB().Where("id = ? AND tenant_id = ?", id, tenantID).First(dest)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return errScopedNotFound
		}
		return result.Error
	}
	return nil
}

// pathID parses a numeric ID path parameter
func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// notFound is the uniform 404 body. Resolution failures all look alike to
// the caller regardless of underlying cause.
func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
}
