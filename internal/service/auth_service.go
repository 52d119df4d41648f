package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/library-management/internal/logging"
	"github.com/iliyamo/library-management/internal/model"
	"github.com/iliyamo/library-management/internal/repository"
	"github.com/iliyamo/library-management/internal/utils"
)

// UserStore is the subset of the user repository the auth flows need.
type UserStore interface {
	Create(ctx context.Context, username, passwordHash, role string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error
	UpdateUsername(ctx context.Context, id uint64, username string) error
}

// SessionStore keeps the hash of the single live refresh token per user.
type SessionStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, ttl time.Duration) error
	GetRefresh(ctx context.Context, userID uint64) (string, error)
	RevokeForUser(ctx context.Context, userID uint64) error
}

// TokenPair is what a successful login or refresh hands back.
type TokenPair struct {
	Access  utils.SignedToken
	Refresh utils.SignedToken
}

type AuthService struct {
	users      UserStore
	sessions   SessionStore
	tokens     *utils.TokenManager
	bcryptCost int
	log        logging.Logger
}

func NewAuthService(users UserStore, sessions SessionStore, tokens *utils.TokenManager, bcryptCost int, log logging.Logger) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		log:        log.With("component", "auth-service"),
	}
}

// RefreshTTL is the lifetime the refresh cookie should carry.
func (s *AuthService) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

// Register creates a reader account.  Admins are only created from the CLI.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &repository.ValidationError{Field: "password", Msg: "must not be empty"}
	}
	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, username, hash, model.RoleReader)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Login checks the credentials and issues a fresh token pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// IssueTokens signs an access/refresh pair and stores the refresh hash,
// replacing whatever session the user had before.
func (s *AuthService) IssueTokens(ctx context.Context, u *model.User) (TokenPair, error) {
	access, err := s.tokens.NewAccessToken(u.ID, u.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.tokens.NewRefreshToken(u.ID, u.Username)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	if err := s.sessions.StoreRefresh(ctx, u.ID, utils.HashToken(refresh.Token), s.tokens.RefreshTTL()); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh session: %w", err)
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Authenticate resolves an access token to its user and checks the role
// allow-list.  An empty allow-list admits any authenticated user.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string, roles ...string) (*model.User, error) {
	claims, err := s.tokens.Parse(accessToken, utils.TokenTypeAccess)
	if err != nil {
		return nil, ErrInvalidToken
	}
	u, err := s.userFromClaims(ctx, claims)
	if err != nil {
		return nil, err
	}
	if len(roles) > 0 && !slices.Contains(roles, u.Role) {
		return nil, repository.ErrForbidden
	}
	return u, nil
}

// Reissue trades a valid refresh token for a new pair.  The presented
// token must be the one currently stored; anything older is rejected.
func (s *AuthService) Reissue(ctx context.Context, refreshToken string) (*model.User, TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return nil, TokenPair{}, ErrInvalidToken
	}
	u, err := s.userFromClaims(ctx, claims)
	if err != nil {
		return nil, TokenPair{}, err
	}
	stored, err := s.sessions.GetRefresh(ctx, u.ID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, TokenPair{}, ErrInvalidToken
	}
	if err != nil {
		return nil, TokenPair{}, err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(utils.HashToken(refreshToken))) != 1 {
		s.log.Warn(ctx, "stale refresh token presented", "user_id", u.ID)
		return nil, TokenPair{}, ErrInvalidToken
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout drops the session named by the refresh token.  A token that no
// longer verifies has nothing left to revoke.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, utils.TokenTypeRefresh)
	if err != nil {
		return nil
	}
	id, err := claims.UserID()
	if err != nil {
		return nil
	}
	return s.Revoke(ctx, id)
}

// Revoke deletes the user's refresh session.
func (s *AuthService) Revoke(ctx context.Context, userID uint64) error {
	if err := s.sessions.RevokeForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.log.Info(ctx, "session revoked", "user_id", userID)
	return nil
}

// UpdatePassword replaces the password after checking the old one, then
// issues a new token pair so other sessions stop refreshing.
func (s *AuthService) UpdatePassword(ctx context.Context, u *model.User, oldPassword, newPassword, confirm string) (TokenPair, error) {
	if newPassword != confirm {
		return TokenPair{}, ErrPasswordMismatch
	}
	if newPassword == "" {
		return TokenPair{}, &repository.ValidationError{Field: "new_password", Msg: "must not be empty"}
	}
	if !utils.VerifyPassword(u.PasswordHash, oldPassword) {
		return TokenPair{}, ErrInvalidCredentials
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return TokenPair{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return TokenPair{}, err
	}
	u.PasswordHash = hash
	s.log.Info(ctx, "password updated", "user_id", u.ID)
	return s.IssueTokens(ctx, u)
}

// UpdateUsername renames the user.
func (s *AuthService) UpdateUsername(ctx context.Context, u *model.User, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := s.users.UpdateUsername(ctx, u.ID, username); err != nil {
		return nil, err
	}
	updated := *u
	updated.Username = username
	return &updated, nil
}

func (s *AuthService) userFromClaims(ctx context.Context, claims *utils.Claims) (*model.User, error) {
	id, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	return u, err
}

func validateUsername(username string) error {
	if username == "" {
		return &repository.ValidationError{Field: "username", Msg: "must not be empty"}
	}
	if utf8.RuneCountInString(username) > model.MaxUsernameLen {
		return &repository.ValidationError{Field: "username", Msg: fmt.Sprintf("must be at most %d characters", model.MaxUsernameLen)}
	}
	return nil
}
