package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/handler"
)

// RegisterAuth mounts /auth.  limiter guards every route in the group;
// refresh and logout authenticate with the refresh cookie instead of a
// bearer token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/token", a.Token)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
}
