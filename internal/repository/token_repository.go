package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRepo keeps one refresh session per user in Redis.  The value is the
// SHA-256 hash of the refresh token; storing a new one replaces the old,
// which is what limits every user to a single active session.
type TokenRepo struct {
	rdb    *redis.Client
	prefix string
}

func NewTokenRepo(rdb *redis.Client, prefix string) *TokenRepo {
	return &TokenRepo{rdb: rdb, prefix: prefix}
}

// ErrSessionStoreUnavailable is returned when Redis was not reachable at startup.
var ErrSessionStoreUnavailable = errors.New("session store unavailable")

func (r *TokenRepo) key(userID uint64) string {
	return r.prefix + strconv.FormatUint(userID, 10)
}

// StoreRefresh saves tokenHash for the user with the given lifetime.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, ttl time.Duration) error {
	if r.rdb == nil {
		return ErrSessionStoreUnavailable
	}
	return r.rdb.Set(ctx, r.key(userID), tokenHash, ttl).Err()
}

// GetRefresh returns the stored hash or ErrSessionNotFound.
func (r *TokenRepo) GetRefresh(ctx context.Context, userID uint64) (string, error) {
	if r.rdb == nil {
		return "", ErrSessionStoreUnavailable
	}
	v, err := r.rdb.Get(ctx, r.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	return v, err
}

// RevokeForUser drops the user's session.  Revoking a missing session is not an error.
func (r *TokenRepo) RevokeForUser(ctx context.Context, userID uint64) error {
	if r.rdb == nil {
		return ErrSessionStoreUnavailable
	}
	return r.rdb.Del(ctx, r.key(userID)).Err()
}
