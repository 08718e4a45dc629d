package models

import "time"

// Refresh token status constants
const (
	RefreshStatusActive  = "active"
	RefreshStatusRotated = "rotated"
	RefreshStatusRevoked = "revoked"
)

// RefreshToken is the store-backed record behind a refresh token. For opaque
// tokens the record is authoritative; for jwt-format tokens it tracks
// rotation state so reuse of a superseded token can be detected.
//
// All tokens minted along one rotation chain share a FamilyID. Presenting a
// rotated token is treated as theft: the whole family is revoked.
type RefreshToken struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TokenHash string `gorm:"uniqueIndex;not null"` // SHA256(plaintext)
	FamilyID  string `gorm:"not null;index;size:36"`

	RealmID  uint   `gorm:"not null;index"`
	ClientID string `gorm:"not null;index"`
	UserID   string `gorm:"not null;index"`
	Scopes   string `gorm:"not null"`

	Status string `gorm:"not null;default:'active';index"`

	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

func (t *RefreshToken) IsActive() bool {
	return t.Status == RefreshStatusActive
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}
