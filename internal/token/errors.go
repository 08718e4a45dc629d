package token

import "errors"

var (
	// ErrTokenGeneration indicates token signing failed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidToken indicates the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("token expired")

	// ErrWrongTokenType indicates a token of one type was presented where
	// another was required (e.g. a refresh JWT at a resource endpoint)
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrUnknownKey indicates the token's kid matches no key of the realm
	ErrUnknownKey = errors.New("unknown signing key")
)
