package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/config"
	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/middleware"
	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/repository"
	"github.com/iliyamo/library-management/internal/service"
)

// UserHandler serves /users: the caller's own account plus the admin list.
type UserHandler struct {
	Auth    *service.AuthService
	Tokens  *AuthHandler
	Fetcher *repository.Fetcher
	Paging  config.PaginationConfig
	Log     logging.Logger
}

func NewUserHandler(auth *service.AuthService, tokens *AuthHandler, fetcher *repository.Fetcher, paging config.PaginationConfig, log logging.Logger) *UserHandler {
	return &UserHandler{Auth: auth, Tokens: tokens, Fetcher: fetcher, Paging: paging, Log: log}
}

type updatePasswordReq struct {
	OldPassword     string `json:"old_password" form:"old_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

type updateInfoReq struct {
	Username string `json:"username" form:"username"`
}

// Me: GET /users/me
func (h *UserHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respond(c, h.Log, service.ErrInvalidToken)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdatePassword: PATCH /users/update-password.  A successful change
// rotates the session: new access token in the body, new refresh cookie.
func (h *UserHandler) UpdatePassword(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respond(c, h.Log, service.ErrInvalidToken)
	}
	var req updatePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	pair, err := h.Auth.UpdatePassword(ctx, u, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return h.Tokens.writeTokens(c, pair)
}

// UpdateInfo: PATCH /users/update-info renames the caller.
func (h *UserHandler) UpdateInfo(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return respond(c, h.Log, service.ErrInvalidToken)
	}
	var req updateInfoReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	updated, err := h.Auth.UpdateUsername(ctx, u, req.Username)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// List: GET /users/users-list (admin)
func (h *UserHandler) List(c echo.Context) error {
	page, filter, err := listParams(c, h.Paging, repository.UserTable)
	if err != nil {
		return respond(c, h.Log, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	out, err := repository.Paginate[model.User](ctx, h.Fetcher, repository.UserTable, page, filter)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}
