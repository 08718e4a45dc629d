package models

import "time"

// AuthorizationCode stores OAuth 2.0 authorization codes (RFC 6749).
// Codes are short-lived and single-use. Only the SHA-256 hash of the
// plaintext code is persisted.
type AuthorizationCode struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	CodeHash string `gorm:"uniqueIndex;not null"` // SHA256(plainCode)

	RealmID  uint   `gorm:"not null;index"`
	ClientID string `gorm:"not null;index"` // protocol client_id, realm-scoped
	UserID   string `gorm:"not null;index"`

	RedirectURI string `gorm:"not null"`
	Scopes      string `gorm:"not null"`

	// PKCE (RFC 7636)
	CodeChallenge       string `gorm:"default:''"`     // empty = PKCE not used
	CodeChallengeMethod string `gorm:"default:'S256'"` // "S256" or "plain"

	// OIDC
	Nonce string `gorm:"default:''"`

	ExpiresAt time.Time
	UsedAt    *time.Time // set atomically on exchange; single winner under races
	CreatedAt time.Time
}

func (a *AuthorizationCode) IsExpired() bool {
	return time.Now().After(a.ExpiresAt)
}

func (a *AuthorizationCode) IsUsed() bool {
	return a.UsedAt != nil
}

func (AuthorizationCode) TableName() string {
	return "authorization_codes"
}
