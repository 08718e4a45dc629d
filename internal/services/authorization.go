package services

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/store"
	"github.com/JunaYa/ferriskey/internal/util"
)

// AuthorizationRequest holds validated parameters for an authorization request
type AuthorizationRequest struct {
	Client              *models.Client
	RedirectURI         string
	Scopes              string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizationService manages the authorization-code lifecycle (RFC 6749
// §4.1 with PKCE per RFC 7636).
type AuthorizationService struct {
	store *store.Store
}

func NewAuthorizationService(s *store.Store) *AuthorizationService {
	return &AuthorizationService{store: s}
}

// ValidateAuthorizationRequest validates all parameters of an incoming
// authorization request against the realm's client registration.
func (s *AuthorizationService) ValidateAuthorizationRequest(
	realm *models.Realm,
	clientID, redirectURI, responseType, scope, state, nonce,
	codeChallenge, codeChallengeMethod string,
) (*AuthorizationRequest, error) {
	// 1. response_type must be "code"
	if responseType != "code" {
		return nil, ErrUnsupportedResponseType
	}

	// 2. Client must exist in this realm, be enabled, and allow the flow
	client, err := s.store.GetClient(realm.ID, clientID)
	if err != nil || !client.Enabled {
		return nil, ErrInvalidClient
	}
	if !client.AllowsGrantType("authorization_code") {
		return nil, ErrInvalidClient
	}

	// 3. redirect_uri must exactly match one of the registered URIs
	if !client.AllowsRedirectURI(redirectURI) {
		return nil, ErrInvalidRedirectURI
	}

	// 4. Validate scope (must be subset of client's allowed scopes)
	if scope != "" && !isScopeSubset(client.Scopes, scope) {
		return nil, ErrInvalidScope
	}
	if scope == "" {
		scope = client.Scopes // Default to all client scopes
	}

	// 5. PKCE: public clients and RequirePKCE clients must send a challenge
	if (client.IsPublic() || client.RequirePKCE) && codeChallenge == "" {
		return nil, ErrPKCERequired
	}
	if codeChallenge != "" {
		if codeChallengeMethod == "" {
			codeChallengeMethod = "plain"
		}
		if codeChallengeMethod != "S256" && codeChallengeMethod != "plain" {
			return nil, ErrPKCERequired
		}
	}

	return &AuthorizationRequest{
		Client:              client,
		RedirectURI:         redirectURI,
		Scopes:              scope,
		State:               state,
		Nonce:               nonce,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeChallengeMethod,
	}, nil
}

// CreateAuthorizationCode generates a one-time authorization code bound to
// the completed login session's context. Returns the plaintext code for the
// redirect; only its hash is stored.
func (s *AuthorizationService) CreateAuthorizationCode(
	realm *models.Realm,
	session *models.LoginSession,
) (string, error) {
	rawBytes, err := util.CryptoRandomBytes(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}
	plainCode := base64.RawURLEncoding.EncodeToString(rawBytes)

	record := &models.AuthorizationCode{
		CodeHash:            util.SHA256Hex(plainCode),
		RealmID:             realm.ID,
		ClientID:            session.ClientID,
		UserID:              session.UserID,
		RedirectURI:         session.RedirectURI,
		Scopes:              session.Scopes,
		CodeChallenge:       session.CodeChallenge,
		CodeChallengeMethod: session.CodeChallengeMethod,
		Nonce:               session.Nonce,
		ExpiresAt:           time.Now().Add(realm.CodeLifetime()),
	}
	if err := s.store.CreateAuthorizationCode(record); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}
	return plainCode, nil
}

// ExchangeCode validates a plaintext authorization code for an already
// authenticated client and atomically consumes it. Missing, expired, and
// wrong-client codes are indistinguishable to the caller.
func (s *AuthorizationService) ExchangeCode(
	realm *models.Realm,
	client *models.Client,
	plainCode, redirectURI, codeVerifier string,
) (*models.AuthorizationCode, error) {
	record, err := s.store.GetAuthorizationCodeByHash(util.SHA256Hex(plainCode))
	if err != nil {
		return nil, ErrInvalidGrant
	}

	// Expired is treated identically to missing, enforced at read time
	if record.IsExpired() {
		return nil, ErrInvalidGrant
	}
	if record.RealmID != realm.ID || record.ClientID != client.ClientID {
		return nil, ErrInvalidGrant // Don't reveal the code exists for another client
	}
	if record.RedirectURI != redirectURI {
		return nil, ErrInvalidGrant
	}

	// PKCE: verify whenever a challenge was recorded or the client mandates it
	if record.CodeChallenge != "" {
		if !verifyPKCE(record.CodeChallenge, record.CodeChallengeMethod, codeVerifier) {
			return nil, ErrInvalidCodeVerifier
		}
	} else if client.IsPublic() || client.RequirePKCE {
		return nil, ErrPKCERequired
	}

	// Consume atomically; the losing side of a race sees ErrInvalidGrant
	now := time.Now()
	if err := s.store.ConsumeAuthorizationCode(record.ID); err != nil {
		if errors.Is(err, store.ErrCodeAlreadyUsed) {
			return nil, ErrInvalidGrant
		}
		return nil, fmt.Errorf("failed to consume code: %w", err)
	}
	record.UsedAt = &now // Reflect DB state in the returned struct

	return record, nil
}

// PKCE helpers (RFC 7636)

// verifyPKCE validates code_verifier against the stored code_challenge
func verifyPKCE(codeChallenge, method, codeVerifier string) bool {
	if codeVerifier == "" {
		return false
	}
	switch strings.ToUpper(method) {
	case "S256":
		sum := sha256.Sum256([]byte(codeVerifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		return computed == codeChallenge
	case "PLAIN", "":
		return codeVerifier == codeChallenge
	default:
		return false
	}
}

// isScopeSubset reports whether every requested scope is allowed.
func isScopeSubset(allowedScopes, requestedScopes string) bool {
	allowed := make(map[string]bool)
	for _, sc := range strings.Fields(allowedScopes) {
		allowed[sc] = true
	}
	for _, sc := range strings.Fields(requestedScopes) {
		if !allowed[sc] {
			return false
		}
	}
	return true
}
