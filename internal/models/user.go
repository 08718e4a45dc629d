package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Required action identifiers surfaced by the login flow.
const (
	ActionVerifyEmail    = "verify_email"
	ActionUpdatePassword = "update_password"
	ActionConfigureOTP   = "configure_otp"
)

// User belongs to exactly one realm. Usernames are unique per realm, not
// globally; credential lookups always carry the realm id.
type User struct {
	ID       string `gorm:"primaryKey;size:36"` // uuid
	RealmID  uint   `gorm:"not null;index:idx_users_realm_username,unique"`
	Username string `gorm:"not null;index:idx_users_realm_username,unique;size:255"`

	Email        string
	FullName     string
	Enabled      bool   `gorm:"not null;default:true"`
	PasswordHash string `gorm:"not null"`

	// Outstanding mandated actions ("verify_email", ...). A non-empty list
	// blocks login completion until resolved out-of-band.
	RequiredActions StringArray `gorm:"type:json"`

	// TOTP second factor. Empty means no second factor is configured.
	TOTPSecret string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetPassword hashes and stores the password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// HasSecondFactor reports whether an OTP challenge is required after the
// credential check.
func (u *User) HasSecondFactor() bool {
	return u.TOTPSecret != ""
}

func (u *User) RequiresAction(action string) bool {
	for _, a := range u.RequiredActions {
		if a == action {
			return true
		}
	}
	return false
}

func (User) TableName() string {
	return "users"
}
