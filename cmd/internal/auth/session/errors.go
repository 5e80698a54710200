package session

import "errors"

var (
	// ErrInvalidCredentials is the single login failure. It never says which factor was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken covers bad signatures, malformed tokens, the wrong token type,
	// and refresh tokens with no live session.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned by Verify for a correctly signed token past its exp.
	ErrTokenExpired = errors.New("token expired")

	// ErrInactiveAccount is returned by Refresh when the owning user was deactivated.
	ErrInactiveAccount = errors.New("inactive account")

	// ErrSessionNotFound is returned by stores when no row holds the digest.
	ErrSessionNotFound = errors.New("session not found")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
