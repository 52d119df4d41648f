package model

// Roles understood by the access-control layer.
const (
	RoleReader = "reader"
	RoleAdmin  = "admin"
)

// MaxUsernameLen mirrors the width of users.username.
const MaxUsernameLen = 50

// User is an account row.  PasswordHash never leaves the service: it is
// excluded from JSON so handlers can return the struct directly.
type User struct {
	ID           uint64 `json:"id" db:"id"`
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"hashed_password"`
	Role         string `json:"role" db:"role"`
}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool { return r == RoleReader || r == RoleAdmin }
