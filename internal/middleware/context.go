package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/model"
)

// userKey is the echo context key JWTAuth stores the principal under.
const userKey = "user"

// CurrentUser returns the user JWTAuth attached to the request.
func CurrentUser(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(userKey).(*model.User)
	return u, ok && u != nil
}

// SetUser attaches u to the request; exported for handler tests.
func SetUser(c echo.Context, u *model.User) { c.Set(userKey, u) }

// currentUserID is the rate-limit key component for the caller, "anon"
// before authentication.
func currentUserID(c echo.Context) string {
	if u, ok := CurrentUser(c); ok {
		return strconv.FormatUint(u.ID, 10)
	}
	return "anon"
}
