package token

import "time"

// Token type constants
const (
	TokenTypeBearer = "Bearer"

	// typ claim values. Access and refresh JWTs carry distinct types so one
	// can never be replayed as the other.
	TypeAccess  = "Bearer"
	TypeRefresh = "Refresh"
	TypeID      = "ID"
)

// AccessTokenParams holds the subject data for an access token.
type AccessTokenParams struct {
	Subject           string // user ID, or client ID for client_credentials
	ClientID          string
	Scopes            string
	PreferredUsername string
}

// IDTokenParams holds all data needed to generate an OIDC ID Token (OIDC Core 1.0 §2).
type IDTokenParams struct {
	Subject  string
	ClientID string
	Scopes   string
	Nonce    string
	AuthTime time.Time

	// AccessToken, when set, produces the at_hash claim
	AccessToken string

	// Profile claims, emitted only when the profile scope was granted
	Name              string
	PreferredUsername string
	UpdatedAt         *time.Time

	// Email claims, emitted only when the email scope was granted
	Email         string
	EmailVerified bool
}

// Issued is a signed token together with its expiry.
type Issued struct {
	Value     string
	ExpiresAt time.Time
}
