package compliance

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/samasante/amina/internal/platform/auth"
)

// RegisterRoutes exposes the retention policies to administrators.
func RegisterRoutes(g *echo.Group, service *RetentionService) {
	g.GET("/compliance/retention-policies", func(c echo.Context) error {
		policies := service.Policies()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"policies": policies,
			"total":    len(policies),
		})
	}, auth.RequireRole(auth.RoleHospitalAdmin))
}
