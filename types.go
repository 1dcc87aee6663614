package authkit

import (
	"context"

	"github.com/MrEthical07/authkit/refresh"
)

// UserProvider looks up credentials for Login. Implementations return
// ErrUserNotFound for unknown identifiers.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
}

// PasswordUpgrader is optionally implemented by a UserProvider to receive
// re-hashed passwords when the stored hash uses weaker parameters than the
// current config.
type PasswordUpgrader interface {
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

// UserRecord is the credential record returned by UserProvider.
type UserRecord struct {
	UserID       string
	Identifier   string
	PasswordHash string
	// Roles are assigned in the kit's RBAC authority on successful login.
	Roles []string
}

// LoginResult is returned by Kit.Login.
type LoginResult struct {
	UserID    string
	SessionID string
	Tokens    refresh.Pair
}
