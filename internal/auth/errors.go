package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrLockedOut indicates the account exceeded the realm's failure limit
	ErrLockedOut = errors.New("account temporarily locked")

	// ErrInvalidOTP indicates the one-time code did not match
	ErrInvalidOTP = errors.New("invalid one-time code")

	// HTTP API errors
	ErrHTTPAPIConnection  = errors.New("failed to connect to authentication API")
	ErrHTTPAPIAuthFailed  = errors.New("authentication API rejected credentials")
	ErrHTTPAPIInvalidResp = errors.New("invalid response from authentication API")
)
