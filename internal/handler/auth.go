package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/config"
	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/service"
)

// AuthHandler serves registration, login, refresh and logout.  The refresh
// token only ever travels in an HttpOnly cookie scoped to /auth.
type AuthHandler struct {
	Auth   *service.AuthService
	Cookie config.AuthConfig
	Log    logging.Logger
}

func NewAuthHandler(auth *service.AuthService, cookie config.AuthConfig, log logging.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Cookie: cookie, Log: log}
}

// ----- DTOs -----

type credentialsReq struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type registerResp struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Register: POST /auth/register.  Always creates a reader.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Auth.Register(ctx, req.Username, req.Password)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, registerResp{Message: "Registration is completed", Username: u.Username})
}

// Token: POST /auth/token.  Accepts JSON or form fields; answers the access
// token and sets the refresh cookie.
func (h *AuthHandler) Token(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "username/password required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	_, pair, err := h.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return h.writeTokens(c, pair)
}

// Refresh: POST /auth/refresh.  Rotates the pair using the refresh cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(h.Cookie.CookieName)
	if err != nil || cookie.Value == "" {
		return respond(c, h.Log, service.ErrInvalidToken)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	_, pair, err := h.Auth.Reissue(ctx, cookie.Value)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return h.writeTokens(c, pair)
}

// Logout: POST /auth/logout.  Drops the stored session and clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(h.Cookie.CookieName); err == nil && cookie.Value != "" {
		ctx, cancel := withTimeout(c)
		defer cancel()
		if err := h.Auth.Logout(ctx, cookie.Value); err != nil {
			return respond(c, h.Log, err)
		}
	}
	c.SetCookie(h.refreshCookie("", -1))
	return c.NoContent(http.StatusNoContent)
}

// writeTokens is shared by every flow that mints a new pair.
func (h *AuthHandler) writeTokens(c echo.Context, pair service.TokenPair) error {
	c.SetCookie(h.refreshCookie(pair.Refresh.Token, int(h.Auth.RefreshTTL()/time.Second)))
	return c.JSON(http.StatusOK, tokenResp{AccessToken: pair.Access.Token, TokenType: "bearer"})
}

func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.Cookie.CookieName,
		Value:    value,
		Path:     "/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Cookie.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}
