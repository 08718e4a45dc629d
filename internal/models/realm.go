package models

import "time"

// Realm is the tenant boundary. Every client, user, authorization code, and
// signing key belongs to exactly one realm; nothing is shared across realms.
const (
	RefreshFormatOpaque = "opaque"
	RefreshFormatJWT    = "jwt"
)

type Realm struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	Name    string `gorm:"uniqueIndex;not null;size:255"`
	Enabled bool   `gorm:"not null;default:true"`

	// Signing
	SigningAlgorithm string `gorm:"not null;default:'RS256'"` // "RS256" or "ES256"

	// Token lifetimes in seconds
	CodeTTL         int `gorm:"not null;default:600"`
	AccessTokenTTL  int `gorm:"not null;default:3600"`
	RefreshTokenTTL int `gorm:"not null;default:2592000"`

	// Refresh token policy
	RefreshRotationEnabled bool   `gorm:"not null;default:true"`
	RefreshTokenFormat     string `gorm:"not null;default:'opaque'"` // "opaque" or "jwt"

	// Lockout policy
	MaxLoginFailures int `gorm:"not null;default:5"`
	LockoutSeconds   int `gorm:"not null;default:900"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Realm) CodeLifetime() time.Duration {
	return time.Duration(r.CodeTTL) * time.Second
}

func (r *Realm) AccessTokenLifetime() time.Duration {
	return time.Duration(r.AccessTokenTTL) * time.Second
}

func (r *Realm) RefreshTokenLifetime() time.Duration {
	return time.Duration(r.RefreshTokenTTL) * time.Second
}

func (r *Realm) LockoutWindow() time.Duration {
	return time.Duration(r.LockoutSeconds) * time.Second
}

func (Realm) TableName() string {
	return "realms"
}
