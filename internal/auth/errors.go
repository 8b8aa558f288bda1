package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password
	// so responses never reveal whether an account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenNotFound means the ledger has no record for a token.
	ErrTokenNotFound = errors.New("token does not exist")

	// ErrTokenConflict is a ledger uniqueness violation. It should never
	// happen for freshly signed tokens and is treated as an internal fault.
	ErrTokenConflict = errors.New("access token already recorded")

	ErrMissingRefreshToken   = errors.New("refresh token is missing")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)
