package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/JunaYa/ferriskey/internal/keys"
	"github.com/JunaYa/ferriskey/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer signs access, ID, and refresh JWTs with the owning realm's key.
// Every token carries the realm's issuer URL and the signing key's kid, so
// a token from one realm can never verify in another.
type Issuer struct {
	baseURL  string
	registry *keys.Registry
}

func NewIssuer(baseURL string, registry *keys.Registry) *Issuer {
	return &Issuer{baseURL: baseURL, registry: registry}
}

// IssuerURL returns the iss value for a realm.
func (i *Issuer) IssuerURL(realmName string) string {
	return i.baseURL + "/realms/" + realmName
}

// IssueAccessToken creates a signed access token JWT for the realm.
func (i *Issuer) IssueAccessToken(realm *models.Realm, params AccessTokenParams) (*Issued, error) {
	now := time.Now()
	expiresAt := now.Add(realm.AccessTokenLifetime())

	claims := jwt.MapClaims{
		"iss":   i.IssuerURL(realm.Name),
		"sub":   params.Subject,
		"aud":   params.ClientID,
		"azp":   params.ClientID,
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
		"jti":   uuid.New().String(),
		"typ":   TypeAccess,
		"scope": params.Scopes,
	}
	if params.PreferredUsername != "" {
		claims["preferred_username"] = params.PreferredUsername
	}

	signed, err := i.sign(realm, claims)
	if err != nil {
		return nil, err
	}
	return &Issued{Value: signed, ExpiresAt: expiresAt}, nil
}

// IssueIDToken creates a signed OIDC ID token. ID tokens are not stored;
// they are short-lived and non-revocable. Profile and email claims are
// gated on the granted scopes.
func (i *Issuer) IssueIDToken(realm *models.Realm, params IDTokenParams) (*Issued, error) {
	now := time.Now()
	expiresAt := now.Add(realm.AccessTokenLifetime())

	claims := jwt.MapClaims{
		"iss":       i.IssuerURL(realm.Name),
		"sub":       params.Subject,
		"aud":       params.ClientID,
		"azp":       params.ClientID,
		"exp":       expiresAt.Unix(),
		"iat":       now.Unix(),
		"jti":       uuid.New().String(),
		"typ":       TypeID,
		"auth_time": params.AuthTime.Unix(),
	}

	if params.Nonce != "" {
		claims["nonce"] = params.Nonce
	}
	if params.AccessToken != "" {
		claims["at_hash"] = ComputeAtHash(params.AccessToken)
	}

	granted := ScopeSet(params.Scopes)
	if granted["profile"] {
		if params.Name != "" {
			claims["name"] = params.Name
		}
		if params.PreferredUsername != "" {
			claims["preferred_username"] = params.PreferredUsername
		}
		if params.UpdatedAt != nil {
			claims["updated_at"] = params.UpdatedAt.Unix()
		}
	}
	if granted["email"] && params.Email != "" {
		claims["email"] = params.Email
		claims["email_verified"] = params.EmailVerified
	}

	signed, err := i.sign(realm, claims)
	if err != nil {
		return nil, err
	}
	return &Issued{Value: signed, ExpiresAt: expiresAt}, nil
}

// IssueRefreshJWT creates a signed refresh token JWT, used when the realm's
// refresh token format is "jwt" instead of opaque.
func (i *Issuer) IssueRefreshJWT(realm *models.Realm, params AccessTokenParams) (*Issued, error) {
	now := time.Now()
	expiresAt := now.Add(realm.RefreshTokenLifetime())

	claims := jwt.MapClaims{
		"iss":   i.IssuerURL(realm.Name),
		"sub":   params.Subject,
		"aud":   params.ClientID,
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
		"jti":   uuid.New().String(),
		"typ":   TypeRefresh,
		"scope": params.Scopes,
	}

	signed, err := i.sign(realm, claims)
	if err != nil {
		return nil, err
	}
	return &Issued{Value: signed, ExpiresAt: expiresAt}, nil
}

func (i *Issuer) sign(realm *models.Realm, claims jwt.MapClaims) (string, error) {
	key, err := i.registry.ActiveKey(realm)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	t := jwt.NewWithClaims(key.SigningMethod(), claims)
	t.Header["kid"] = key.KID

	signed, err := t.SignedString(key.Private)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, nil
}

// Verify parses a token against the realm's published keys and enforces the
// expected typ claim.
func (i *Issuer) Verify(realm *models.Realm, tokenString, expectedType string) (jwt.MapClaims, error) {
	realmKeys, err := i.registry.AllKeys(realm.ID)
	if err != nil {
		return nil, err
	}

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		for _, key := range realmKeys {
			if key.KID == kid {
				return key.Public(), nil
			}
		}
		return nil, ErrUnknownKey
	}, jwt.WithValidMethods([]string{realm.SigningAlgorithm}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if typ, _ := claims["typ"].(string); typ != expectedType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
