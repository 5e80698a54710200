package token

import "errors"

// Public, stable errors for callers.
var (
	ErrKeyMissing  = errors.New("token digest key missing")
	ErrKeyTooShort = errors.New("token digest key too short")
)
