package auth

import "errors"

// Verification failures. Callers classify with errors.Is.
var (
	ErrMissingToken = errors.New("token required")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUserNotFound = errors.New("user not found")
	ErrUserBlocked  = errors.New("user is blocked")
	ErrTokenRevoked = errors.New("token has been revoked")
)
