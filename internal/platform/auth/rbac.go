package auth

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	RoleUser  = "user"
	RoleCHW   = "chw"
	RoleAdmin = "admin"
)

// RequireRole allows the request through only when the caller has one of
// roles. Roles are exclusive: an admin does not implicitly pass a chw check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			for _, allowed := range roles {
				if role == allowed {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("User role %s is not authorized to access this route", role))
		}
	}
}
