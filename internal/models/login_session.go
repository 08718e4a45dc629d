package models

import "time"

// Login session states. Each HTTP round-trip applies one transition; the
// session row carries the accumulated context between calls.
const (
	LoginStateAwaitingCredentials = "awaiting_credentials"
	LoginStateRequiresAction      = "requires_action"
	LoginStateRequiresOTP         = "requires_otp_challenge"
	LoginStateComplete            = "complete"
	LoginStateFailed              = "failed"
)

// LoginSession is the explicit state of one login attempt. Created when an
// authorization or direct-grant login starts; terminal on success, failure,
// or timeout. A failed session cannot be resumed.
type LoginSession struct {
	ID      string `gorm:"primaryKey;size:36"` // uuid, the session reference
	RealmID uint   `gorm:"not null;index"`
	State   string `gorm:"not null;default:'awaiting_credentials'"`

	// Set once credentials are verified.
	UserID string `gorm:"index"`

	// Redirect-flow context; empty for direct grants.
	ClientID            string
	RedirectURI         string
	Scopes              string
	OAuthState          string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string

	// Bounded second-factor attempts.
	OTPAttempts int `gorm:"not null;default:0"`

	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *LoginSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IsTerminal reports whether the session can accept further transitions.
func (s *LoginSession) IsTerminal() bool {
	return s.State == LoginStateComplete || s.State == LoginStateFailed
}

// IsRedirectFlow reports whether the session was started from the
// authorization endpoint and must end in a code redirect.
func (s *LoginSession) IsRedirectFlow() bool {
	return s.ClientID != ""
}

func (LoginSession) TableName() string {
	return "login_sessions"
}
