package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleViewer can read state, audit, and history but cannot touch
	// the transmitter.
	RoleViewer Role = "viewer"

	// RoleOperator can control RF: connect, arm, broadcast, channels,
	// programs. The day-to-day console account.
	RoleOperator Role = "operator"

	// RoleAdmin has everything operator can do plus managing operator
	// accounts, programs, and destructive maintenance operations.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of valid operator roles.
var ValidRoles = []Role{RoleViewer, RoleOperator, RoleAdmin}

// IsValidRole returns true if the role is a valid operator role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Operator represents an authenticated human account.
type Operator struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOperatorNotFound   = errors.New("operator not found")
	ErrOperatorInactive   = errors.New("operator account is inactive")
	ErrUsernameExists     = errors.New("username already exists")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrSelfModification   = errors.New("cannot modify own account in this way")
)
