package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-management/internal/config"
	"github.com/iliyamo/library-management/internal/handler"
	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/middleware"
	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/repository"
	"github.com/iliyamo/library-management/internal/service"
)

// tokenTable accepts a fixed set of bearer tokens.
type tokenTable map[string]*model.User

func (tt tokenTable) Authenticate(_ context.Context, token string, roles ...string) (*model.User, error) {
	u, ok := tt[token]
	if !ok {
		return nil, service.ErrInvalidToken
	}
	if len(roles) > 0 && !slices.Contains(roles, u.Role) {
		return nil, repository.ErrForbidden
	}
	return u, nil
}

var users = tokenTable{
	"reader-token": {ID: 7, Username: "alice", Role: model.RoleReader},
	"admin-token":  {ID: 1, Username: "root", Role: model.RoleAdmin},
}

func newServer(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	log := logging.Nop()
	paging := config.PaginationConfig{DefaultLimit: 10, MaxLimit: 100}
	fetcher := repository.NewFetcher(db)
	borrows := service.NewBorrowService(service.NewSQLBorrowStore(db), nil, log)

	e := New(log)
	RegisterRoutes(e, db)
	RegisterCatalog(e, users,
		handler.NewAuthorHandler(repository.NewAuthorRepo(db), fetcher, paging, log),
		handler.NewBookHandler(repository.NewBookRepo(db), fetcher, paging, log))
	RegisterBorrows(e, users, handler.NewBorrowHandler(borrows, fetcher, paging, log))
	RegisterUsers(e, users, handler.NewUserHandler(nil, nil, fetcher, paging, log))
	return e, mock
}

func call(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	e, mock := newServer(t)

	mock.ExpectPing()
	rec := call(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	rec = call(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAccessRules(t *testing.T) {
	e, _ := newServer(t)

	tests := []struct {
		method, path, token string
		status              int
	}{
		{http.MethodGet, "/authors", "", http.StatusUnauthorized},
		{http.MethodGet, "/authors", "stale-token", http.StatusUnauthorized},
		{http.MethodPost, "/authors", "reader-token", http.StatusForbidden},
		{http.MethodPut, "/authors/1", "reader-token", http.StatusForbidden},
		{http.MethodDelete, "/books/1", "reader-token", http.StatusForbidden},
		{http.MethodGet, "/borrows", "reader-token", http.StatusForbidden},
		{http.MethodGet, "/borrows/3", "reader-token", http.StatusForbidden},
		{http.MethodGet, "/users/users-list", "reader-token", http.StatusForbidden},
		{http.MethodGet, "/nowhere", "admin-token", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := call(e, tt.method, tt.path, tt.token)
		assert.Equal(t, tt.status, rec.Code, "%s %s as %q", tt.method, tt.path, tt.token)
		assert.True(t, strings.HasPrefix(rec.Body.String(), `{"error":`), rec.Body.String())
	}
}

func TestTrailingSlashIsStripped(t *testing.T) {
	e, mock := newServer(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM .borrows.").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	rec := call(e, http.MethodGet, "/borrows/", "admin-token")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReaderSeesOwnProfile(t *testing.T) {
	e, _ := newServer(t)

	rec := call(e, http.MethodGet, "/users/me", "reader-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"username":"alice","role":"reader"}`, rec.Body.String())
}

func TestAuthGroupIsRateLimited(t *testing.T) {
	e := New(logging.Nop())
	limiter := middleware.NewTokenBucket(config.RateLimitConfig{
		Enabled:        true,
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl:",
		Fallback:       true,
	}, nil, logging.Nop())
	RegisterAuth(e, handler.NewAuthHandler(nil, config.AuthConfig{CookieName: "refresh_token"}, logging.Nop()), limiter)

	body := `{"username":`
	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	e.ServeHTTP(first, req)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	e.ServeHTTP(second, req)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get(echo.HeaderRetryAfter))
}
