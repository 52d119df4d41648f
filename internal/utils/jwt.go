package utils // package utils provides token signing and password hashing helpers

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrInvalidToken covers every reason a token is rejected: bad signature,
// expired, wrong algorithm, wrong type or malformed subject.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload: {sub, username, type, iat, exp, jti}.
type Claims struct {
	Username string `json:"username"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

// UserID parses the numeric subject.
func (c Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}

// SignedToken is a serialized JWT with its expiry.
type SignedToken struct {
	Token string
	Exp   time.Time
}

// TokenManager signs and verifies RS256 tokens.  It is built once at
// startup and injected where needed.
type TokenManager struct {
	private    *rsa.PrivateKey
	public     *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager builds a manager from an already parsed key pair.
func NewTokenManager(private *rsa.PrivateKey, public *rsa.PublicKey, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		private:    private,
		public:     public,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// LoadTokenManager reads PEM encoded keys from disk.
func LoadTokenManager(privatePath, publicPath string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	privPEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	pubPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return NewTokenManager(priv, pub, accessTTL, refreshTTL), nil
}

// RefreshTTL is the lifetime of refresh tokens (also the cookie max-age).
func (m *TokenManager) RefreshTTL() time.Duration { return m.refreshTTL }

// NewAccessToken signs a short-lived access token for the user.
func (m *TokenManager) NewAccessToken(userID uint64, username string) (SignedToken, error) {
	return m.sign(userID, username, TokenTypeAccess, m.accessTTL)
}

// NewRefreshToken signs a long-lived refresh token for the user.
func (m *TokenManager) NewRefreshToken(userID uint64, username string) (SignedToken, error) {
	return m.sign(userID, username, TokenTypeRefresh, m.refreshTTL)
}

func (m *TokenManager) sign(userID uint64, username, typ string, ttl time.Duration) (SignedToken, error) {
	now := m.now()
	exp := now.Add(ttl)
	claims := Claims{
		Username: username,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			// jti keeps two tokens minted in the same second distinct.
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.private)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// Parse verifies signature, expiry and the expected token type.
func (m *TokenManager) Parse(raw, wantType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.public, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != wantType {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a token.  Only the digest of
// a refresh token is kept server-side.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
