package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/repository"
	"github.com/iliyamo/library-management/internal/service"
)

// Authenticator resolves a bearer access token to a user with one of roles.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string, roles ...string) (*model.User, error)
}

// JWTAuth validates the "Authorization: Bearer <token>" header, re-loads
// the user and checks the role allow-list (empty means any role).  The user
// is available to handlers through CurrentUser.
//
// Missing or invalid tokens answer 401, a role outside the list 403.
func JWTAuth(auth Authenticator, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := bearerToken(header)
			if !ok {
				return unauthorized(c, "not authenticated")
			}

			u, err := auth.Authenticate(c.Request().Context(), raw, roles...)
			switch {
			case errors.Is(err, repository.ErrForbidden):
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			case errors.Is(err, service.ErrInvalidToken):
				return unauthorized(c, "could not validate credentials")
			case err != nil:
				return err
			}

			SetUser(c, u)
			return next(c)
		}
	}
}

// bearerToken extracts the token from an Authorization header value.  The
// scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
}
