package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/config"
	"github.com/iliyamo/library-management/internal/middleware"
	"github.com/iliyamo/library-management/internal/repository"
)

// requestTimeout bounds every database round trip made by a handler.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, &repository.ValidationError{Field: name, Msg: "must be a positive integer"}
	}
	return id, nil
}

// listParams reads offset, limit, field and value.  An omitted limit takes
// the configured default; larger limits are capped.
func listParams(c echo.Context, cfg config.PaginationConfig, t repository.Table) (repository.PageRequest, repository.Filter, error) {
	offset, err := intQuery(c, "offset", 0)
	if err != nil {
		return repository.PageRequest{}, repository.Filter{}, err
	}
	limit, err := intQuery(c, "limit", cfg.DefaultLimit)
	if err != nil {
		return repository.PageRequest{}, repository.Filter{}, err
	}
	page, err := repository.NewPageRequest(offset, limit, cfg.MaxLimit)
	if err != nil {
		return repository.PageRequest{}, repository.Filter{}, err
	}
	filter, err := repository.ParseFilter(t, c.QueryParam("field"), c.QueryParam("value"))
	if err != nil {
		return repository.PageRequest{}, repository.Filter{}, err
	}
	return page, filter, nil
}

func intQuery(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &repository.ValidationError{Field: name, Msg: "must be an integer"}
	}
	return n, nil
}

// actorID is the id of the signed-in user, 0 when none is attached.
func actorID(c echo.Context) uint64 {
	if u, ok := middleware.CurrentUser(c); ok {
		return u.ID
	}
	return 0
}
