package models

import "time"

// SigningKey holds a realm's asymmetric key pair in PEM form. At most one key
// is active per (realm, algorithm); rotation deactivates the old key and
// inserts a new one. Public halves are published on the realm's JWKS
// endpoint; private halves never leave the store and key registry.
type SigningKey struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	RealmID uint   `gorm:"not null;index:idx_signing_keys_realm_kid,unique"`
	KID     string `gorm:"not null;index:idx_signing_keys_realm_kid,unique;size:36"`

	Algorithm  string `gorm:"not null"` // "RS256" or "ES256"
	PrivatePEM string `gorm:"type:text;not null"`
	Active     bool   `gorm:"not null;default:true;index"`

	CreatedAt time.Time
}

func (SigningKey) TableName() string {
	return "signing_keys"
}
