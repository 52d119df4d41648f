package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/repository"
	"github.com/iliyamo/library-management/internal/service"
)

// errorStatus maps domain errors to an HTTP status and client message.
// Anything unrecognized is a 500 with a generic message.
func errorStatus(err error) (int, string) {
	var verr *repository.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()

	case errors.Is(err, repository.ErrAuthorNotFound):
		return http.StatusNotFound, "author not found"
	case errors.Is(err, repository.ErrBookNotFound):
		return http.StatusNotFound, "book not found"
	case errors.Is(err, repository.ErrBorrowNotFound):
		return http.StatusNotFound, "borrow not found"
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "user not found"

	case errors.Is(err, repository.ErrNoCopiesAvailable):
		return http.StatusConflict, "no copies of this book are available"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflicts with an existing record"

	case errors.Is(err, service.ErrBorrowLimitExceeded):
		return http.StatusBadRequest, service.ErrBorrowLimitExceeded.Error()
	case errors.Is(err, repository.ErrAlreadyReturned):
		return http.StatusBadRequest, "book already returned"
	case errors.Is(err, service.ErrPasswordMismatch):
		return http.StatusBadRequest, service.ErrPasswordMismatch.Error()

	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "incorrect username or password"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, "could not validate credentials"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "forbidden"

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request timed out"
	}
	return http.StatusInternalServerError, "internal server error"
}

// respond writes err as {"error": msg}.  Server errors are logged with the
// full cause; the client only sees the generic message.
func respond(c echo.Context, log logging.Logger, err error) error {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error(c.Request().Context(), "request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err)
	}
	if status == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}
	return c.JSON(status, echo.Map{"error": msg})
}

// HTTPErrorHandler renders framework errors (unknown route, wrong method,
// bind failures) and errors returned by middleware in the same
// {"error": msg} shape as the handlers.
func HTTPErrorHandler(log logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok && s != "" {
				msg = s
			}
			if c.Request().Method == http.MethodHead {
				_ = c.NoContent(he.Code)
				return
			}
			_ = c.JSON(he.Code, echo.Map{"error": msg})
			return
		}
		_ = respond(c, log, err)
	}
}
