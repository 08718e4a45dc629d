package services

import (
	"errors"
	"fmt"
)

// Error taxonomy. Handlers map these sentinels onto OAuth2 wire errors and
// HTTP status codes with errors.Is.
var (
	// ErrInvalidRealm: the realm does not exist or is disabled (404)
	ErrInvalidRealm = errors.New("realm not found")

	// ErrInvalidClient: the client does not exist, is disabled, or the
	// grant type is not allowed (401)
	ErrInvalidClient = errors.New("invalid_client")

	// ErrInvalidClientCredentials: client authentication failed. Carries
	// the same wire shape as ErrInvalidClient so probing cannot tell a
	// wrong secret from an unknown client (401).
	ErrInvalidClientCredentials = errors.New("invalid client credentials")

	// ErrInvalidGrant: bad, expired, consumed, or mismatched grant (400)
	ErrInvalidGrant = errors.New("invalid_grant")

	// ErrInvalidCredentials: user authentication failed, uniform for
	// unknown user and wrong password (401)
	ErrInvalidCredentials = errors.New("invalid user credentials")

	// ErrInvalidScope: requested scope exceeds the client's allowance or
	// is not valid for the grant (400)
	ErrInvalidScope = errors.New("invalid_scope")

	// ErrRateLimited: the account is locked out after repeated failures (429)
	ErrRateLimited = errors.New("rate limited")

	// Authorization endpoint errors
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrInvalidRedirectURI      = errors.New("invalid redirect_uri")
	ErrPKCERequired            = errors.New("pkce required")
	ErrInvalidCodeVerifier     = errors.New("invalid code_verifier")
)

// AdditionalStepsError signals that a password-grant login needs more steps
// (required actions, second factor). It is not a failure: handlers return
// HTTP 200 with the status and any outstanding actions.
type AdditionalStepsError struct {
	Status          string
	RequiredActions []string
}

func (e *AdditionalStepsError) Error() string {
	return fmt.Sprintf("additional steps required: %s", e.Status)
}
