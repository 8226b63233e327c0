package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/userhub/user-service/internal/core/domain"
)

// RBAC is a coarse gate on the token role claim. Use cases re-check the
// stored role; this only short-circuits obviously unauthorised requests.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[string(r)] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(RoleKey).(string)
			if _, ok := allowed[role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
