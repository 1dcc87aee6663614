package authkit

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidCredentials is returned by Login for unknown users and wrong
	// passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by a UserProvider for unknown identifiers.
	ErrUserNotFound = errors.New("user not found")
	// ErrLoginLocked is returned by Login while the identifier is locked out. It
	// also matches reason.Locked.
	ErrLoginLocked = errors.New("login locked")
	// ErrUserProvider wraps unexpected UserProvider failures.
	ErrUserProvider = errors.New("user provider failure")
	// ErrUserProviderMissing is returned by Login when the kit was built without a
	// UserProvider.
	ErrUserProviderMissing = errors.New("user provider not configured")
	// ErrBuilderUsed is returned when Build is called twice.
	ErrBuilderUsed = errors.New("builder already used")
)
