package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole narrows a group already behind JWTAuth to the given roles.
// It answers 401 when no user was attached and 403 for any other role.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return unauthorized(c, "not authenticated")
			}
			if !allowed[u.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
