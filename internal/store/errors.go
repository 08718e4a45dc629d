package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrCodeAlreadyUsed is returned by ConsumeAuthorizationCode when the
	// code was already consumed by a concurrent request (0 rows updated).
	ErrCodeAlreadyUsed = errors.New("authorization code already used")

	// ErrRefreshTokenNotActive is returned by RotateRefreshToken when the
	// token's status is no longer active (rotated, revoked, or a concurrent
	// rotation won the race).
	ErrRefreshTokenNotActive = errors.New("refresh token not active")
)
