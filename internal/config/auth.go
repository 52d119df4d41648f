package config

import "time"

// AuthConfig carries the token settings.  Tokens are signed with RS256; the
// key pair is read from PEM files at startup.
type AuthConfig struct {
	PrivateKeyPath   string
	PublicKeyPath    string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	RefreshKeyPrefix string // Redis key prefix for refresh sessions
	CookieName       string
	CookieSecure     bool
}

// LoadAuthConfig reads the token settings.  ACCESS_TOKEN_TTL_MIN and
// REFRESH_TOKEN_TTL_DAYS keep the integer form used by earlier deployments.
func LoadAuthConfig() AuthConfig {
	return AuthConfig{
		PrivateKeyPath:   must("PRIVATE_KEY_PATH"),
		PublicKeyPath:    must("PUBLIC_KEY_PATH"),
		AccessTTL:        time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTTL:       time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", 30)) * 24 * time.Hour,
		RefreshKeyPrefix: envStr("REFRESH_KEY_PREFIX", "refresh:"),
		CookieName:       envStr("REFRESH_COOKIE_NAME", "refresh_token"),
		CookieSecure:     envBool("REFRESH_COOKIE_SECURE", envStr("APP_ENV", "dev") == "prod"),
	}
}
