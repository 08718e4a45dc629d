package models

import (
	"database/sql/driver"
	"encoding/base32"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/JunaYa/ferriskey/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// Client type constants
const (
	ClientTypePublic       = "public"
	ClientTypeConfidential = "confidential"
)

// Base32 characters, but lowercased.
const lowerBase32Chars = "abcdefghijklmnopqrstuvwxyz234567"

// base32 encoder that uses lowered characters without padding.
var base32Lower = base32.NewEncoding(lowerBase32Chars).WithPadding(base32.NoPadding)

// Client is a registered application permitted to request tokens within a
// realm. Confidential clients authenticate with a bcrypt-hashed secret;
// public clients rely on PKCE during the authorization code grant.
type Client struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	RealmID  uint   `gorm:"not null;index:idx_clients_realm_client,unique"`
	ClientID string `gorm:"not null;index:idx_clients_realm_client,unique;size:255"`

	Name        string `gorm:"not null"`
	Description string `gorm:"type:text"`

	ClientType string `gorm:"not null;default:'confidential'"` // "confidential" or "public"
	SecretHash string // bcrypt; empty for public clients

	GrantTypes   string      `gorm:"not null;default:'authorization_code'"` // space-separated set
	RedirectURIs StringArray `gorm:"type:json"`
	Scopes       string      `gorm:"not null;default:'openid profile email'"`
	RequirePKCE  bool        `gorm:"not null;default:false"`

	Enabled   bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerateSecret generates a fresh client secret, stores its bcrypt hash on
// the model, and returns the plaintext. The plaintext is never persisted.
func (c *Client) GenerateSecret() (string, error) {
	rBytes, err := util.CryptoRandomBytes(32)
	if err != nil {
		return "", err
	}
	// Prefix makes leaked secrets easy for code scanners to grab.
	secret := "fk_" + base32Lower.EncodeToString(rBytes)

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	c.SecretHash = string(hashed)
	return secret, nil
}

// ValidateSecret validates the given secret against the stored hash.
func (c *Client) ValidateSecret(secret []byte) bool {
	if c.SecretHash == "" || len(secret) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), secret) == nil
}

// IsPublic reports whether the client is a public (secret-less) client.
func (c *Client) IsPublic() bool {
	return c.ClientType == ClientTypePublic
}

// AllowsGrantType reports whether grantType is in the client's allowed set.
func (c *Client) AllowsGrantType(grantType string) bool {
	for _, g := range strings.Fields(c.GrantTypes) {
		if g == grantType {
			return true
		}
	}
	return false
}

// AllowsRedirectURI reports whether uri exactly matches a registered URI.
func (c *Client) AllowsRedirectURI(uri string) bool {
	if uri == "" {
		return false
	}
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

func (Client) TableName() string {
	return "clients"
}

// StringArray is a custom type for []string stored as JSON in the database
type StringArray []string

// Scan implements sql.Scanner interface
func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, ok := value.(string); ok {
			bytes = []byte(str)
		} else {
			return errors.New("failed to unmarshal JSON value")
		}
	}
	return json.Unmarshal(bytes, s)
}

// Value implements driver.Valuer interface
func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}
