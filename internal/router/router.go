// Package router builds the echo instance and registers every API route.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/library-management/internal/handler"
	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/middleware"
)

// New returns an echo instance with the shared middleware chain: trailing
// slashes stripped before routing, then panic recovery, request ids and one
// log line per request.  Errors render as {"error": msg}.
func New(log logging.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = handler.JSONSerializer{}
	e.HTTPErrorHandler = handler.HTTPErrorHandler(log)

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	return e
}

// RegisterRoutes registers the unauthenticated health probe.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}
