package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JunaYa/ferriskey/internal/auth"
	"github.com/JunaYa/ferriskey/internal/login"
	"github.com/JunaYa/ferriskey/internal/metrics"
	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/store"
	"github.com/JunaYa/ferriskey/internal/token"
	"github.com/JunaYa/ferriskey/internal/util"

	"github.com/google/uuid"
)

// Supported grant types
const (
	GrantAuthorizationCode = "authorization_code"
	GrantPassword          = "password"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

// TokenRequest carries the parsed parameters of a token-endpoint request.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string

	// authorization_code
	Code         string
	RedirectURI  string
	CodeVerifier string

	// password
	Username string
	Password string
	OTP      string

	// refresh_token
	RefreshToken string

	Scope string
}

// TokenResponse is the successful token-endpoint response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope"`
}

// GrantService is the token-endpoint dispatcher. It resolves the realm,
// authenticates the client, and routes to exactly one grant handler. Token
// issuance is the last step of every handler, so a failed request leaves no
// partial side effects.
type GrantService struct {
	store   *store.Store
	realms  *RealmService
	authz   *AuthorizationService
	machine *login.Machine
	issuer  *token.Issuer
	metrics metrics.Recorder
}

func NewGrantService(
	s *store.Store,
	realms *RealmService,
	authz *AuthorizationService,
	machine *login.Machine,
	issuer *token.Issuer,
	recorder metrics.Recorder,
) *GrantService {
	return &GrantService{
		store:   s,
		realms:  realms,
		authz:   authz,
		machine: machine,
		issuer:  issuer,
		metrics: recorder,
	}
}

// HandleTokenRequest runs the full dispatch pipeline for one request.
func (s *GrantService) HandleTokenRequest(
	ctx context.Context,
	realmName string,
	req *TokenRequest,
) (*TokenResponse, error) {
	resp, err := s.handle(ctx, realmName, req)
	s.metrics.RecordGrant(req.GrantType, grantResult(err))
	return resp, err
}

func (s *GrantService) handle(
	ctx context.Context,
	realmName string,
	req *TokenRequest,
) (*TokenResponse, error) {
	realm, err := s.realms.Resolve(ctx, realmName)
	if err != nil {
		return nil, err
	}

	client, err := s.store.GetClient(realm.ID, req.ClientID)
	if err != nil || !client.Enabled {
		return nil, ErrInvalidClient
	}
	if !client.AllowsGrantType(req.GrantType) {
		return nil, ErrInvalidClient
	}

	// Client authentication. Confidential clients must present their
	// secret; public clients' secrets are ignored.
	if !client.IsPublic() {
		if !client.ValidateSecret([]byte(req.ClientSecret)) {
			return nil, ErrInvalidClientCredentials
		}
	}

	switch req.GrantType {
	case GrantAuthorizationCode:
		return s.handleAuthorizationCode(ctx, realm, client, req)
	case GrantPassword:
		return s.handlePassword(ctx, realm, client, req)
	case GrantClientCredentials:
		return s.handleClientCredentials(realm, client, req)
	case GrantRefreshToken:
		return s.handleRefreshToken(ctx, realm, client, req)
	default:
		return nil, ErrInvalidGrant
	}
}

func (s *GrantService) handleAuthorizationCode(
	ctx context.Context,
	realm *models.Realm,
	client *models.Client,
	req *TokenRequest,
) (*TokenResponse, error) {
	record, err := s.authz.ExchangeCode(realm, client, req.Code, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		return nil, err
	}

	// The user may have been disabled since login
	user, err := s.store.GetUserByID(realm.ID, record.UserID)
	if err != nil || !user.Enabled {
		return nil, ErrInvalidGrant
	}

	return s.issueTokens(realm, client, user, record.Scopes, GrantAuthorizationCode, issueOpts{
		withRefresh: true,
		nonce:       record.Nonce,
		authTime:    record.CreatedAt,
	})
}

func (s *GrantService) handlePassword(
	ctx context.Context,
	realm *models.Realm,
	client *models.Client,
	req *TokenRequest,
) (*TokenResponse, error) {
	scopes, err := resolveScopes(client, req.Scope)
	if err != nil {
		return nil, err
	}

	outcome, err := s.machine.RunDirect(ctx, realm, login.StepInput{
		Username: req.Username,
		Password: req.Password,
		OTP:      req.OTP,
	})
	if err != nil {
		if errors.Is(err, auth.ErrLockedOut) {
			s.metrics.RecordLockout(realm.Name)
			return nil, ErrRateLimited
		}
		return nil, err
	}
	s.metrics.RecordLogin(realm.Name, outcome.Status)

	switch outcome.Status {
	case login.StatusSuccess:
		// fall through to issuance
	case login.StatusFailed:
		return nil, ErrInvalidCredentials
	case login.StatusRequiresOTP:
		if req.OTP != "" {
			// A code was supplied and did not verify
			return nil, ErrInvalidCredentials
		}
		return nil, &AdditionalStepsError{Status: login.StatusRequiresOTP}
	case login.StatusRequiresActions:
		return nil, &AdditionalStepsError{
			Status:          login.StatusRequiresActions,
			RequiredActions: outcome.RequiredActions,
		}
	default:
		return nil, fmt.Errorf("unexpected login outcome: %s", outcome.Status)
	}

	return s.issueTokens(realm, client, outcome.User, scopes, GrantPassword, issueOpts{
		withRefresh: true,
		authTime:    time.Now(),
	})
}

func (s *GrantService) handleClientCredentials(
	realm *models.Realm,
	client *models.Client,
	req *TokenRequest,
) (*TokenResponse, error) {
	// Service identities are for confidential clients only
	if client.IsPublic() {
		return nil, ErrInvalidClient
	}

	scopes, err := resolveScopes(client, req.Scope)
	if err != nil {
		return nil, err
	}
	// There is no end user, so identity scopes make no sense here
	if token.ScopeSet(scopes)["openid"] {
		return nil, ErrInvalidScope
	}

	access, err := s.issuer.IssueAccessToken(realm, token.AccessTokenParams{
		Subject:  "service-account-" + client.ClientID,
		ClientID: client.ClientID,
		Scopes:   scopes,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued("access", GrantClientCredentials)

	// No refresh token for client_credentials
	return &TokenResponse{
		AccessToken: access.Value,
		TokenType:   token.TokenTypeBearer,
		ExpiresIn:   int64(time.Until(access.ExpiresAt).Seconds()),
		Scope:       scopes,
	}, nil
}

func (s *GrantService) handleRefreshToken(
	ctx context.Context,
	realm *models.Realm,
	client *models.Client,
	req *TokenRequest,
) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, ErrInvalidGrant
	}

	// JWT-format tokens are checked by signature first; both formats are
	// then resolved through the store record, which is authoritative for
	// rotation state.
	if realm.RefreshTokenFormat == models.RefreshFormatJWT {
		if _, err := s.issuer.Verify(realm, req.RefreshToken, token.TypeRefresh); err != nil {
			return nil, ErrInvalidGrant
		}
	}

	record, err := s.store.GetRefreshTokenByHash(util.SHA256Hex(req.RefreshToken))
	if err != nil {
		return nil, ErrInvalidGrant
	}
	if record.RealmID != realm.ID || record.ClientID != client.ClientID {
		return nil, ErrInvalidGrant
	}
	if record.IsExpired() {
		return nil, ErrInvalidGrant
	}

	// A rotated token presented again means the chain leaked: revoke the
	// whole family before rejecting.
	if record.Status == models.RefreshStatusRotated {
		if err := s.store.RevokeRefreshTokenFamily(record.FamilyID); err != nil {
			return nil, fmt.Errorf("failed to revoke token family: %w", err)
		}
		return nil, ErrInvalidGrant
	}
	if !record.IsActive() {
		return nil, ErrInvalidGrant
	}

	// A disabled user must not keep minting tokens off an old grant
	user, err := s.store.GetUserByID(realm.ID, record.UserID)
	if err != nil || !user.Enabled {
		return nil, ErrInvalidGrant
	}

	newRefresh := ""
	if realm.RefreshRotationEnabled {
		if err := s.store.RotateRefreshToken(record.ID); err != nil {
			if errors.Is(err, store.ErrRefreshTokenNotActive) {
				// Lost a race with a concurrent refresh: same treatment
				// as replay
				if err := s.store.RevokeRefreshTokenFamily(record.FamilyID); err != nil {
					return nil, fmt.Errorf("failed to revoke token family: %w", err)
				}
				return nil, ErrInvalidGrant
			}
			return nil, err
		}

		newRefresh, err = s.createRefreshToken(realm, client, user, record.Scopes, record.FamilyID)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordTokenIssued("refresh", GrantRefreshToken)
	}

	access, err := s.issuer.IssueAccessToken(realm, token.AccessTokenParams{
		Subject:           user.ID,
		ClientID:          client.ClientID,
		Scopes:            record.Scopes,
		PreferredUsername: user.Username,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued("access", GrantRefreshToken)

	return &TokenResponse{
		AccessToken:  access.Value,
		TokenType:    token.TokenTypeBearer,
		ExpiresIn:    int64(time.Until(access.ExpiresAt).Seconds()),
		RefreshToken: newRefresh,
		Scope:        record.Scopes,
	}, nil
}

type issueOpts struct {
	withRefresh bool
	nonce       string
	authTime    time.Time
}

// issueTokens builds the full response token set for a user grant.
func (s *GrantService) issueTokens(
	realm *models.Realm,
	client *models.Client,
	user *models.User,
	scopes, grantType string,
	opts issueOpts,
) (*TokenResponse, error) {
	access, err := s.issuer.IssueAccessToken(realm, token.AccessTokenParams{
		Subject:           user.ID,
		ClientID:          client.ClientID,
		Scopes:            scopes,
		PreferredUsername: user.Username,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTokenIssued("access", grantType)

	resp := &TokenResponse{
		AccessToken: access.Value,
		TokenType:   token.TokenTypeBearer,
		ExpiresIn:   int64(time.Until(access.ExpiresAt).Seconds()),
		Scope:       scopes,
	}

	if token.ScopeSet(scopes)["openid"] {
		updatedAt := user.UpdatedAt
		idToken, err := s.issuer.IssueIDToken(realm, token.IDTokenParams{
			Subject:           user.ID,
			ClientID:          client.ClientID,
			Scopes:            scopes,
			Nonce:             opts.nonce,
			AuthTime:          opts.authTime,
			AccessToken:       access.Value,
			Name:              user.FullName,
			PreferredUsername: user.Username,
			UpdatedAt:         &updatedAt,
			Email:             user.Email,
			EmailVerified:     !user.RequiresAction(models.ActionVerifyEmail),
		})
		if err != nil {
			return nil, err
		}
		resp.IDToken = idToken.Value
		s.metrics.RecordTokenIssued("id", grantType)
	}

	if opts.withRefresh {
		refresh, err := s.createRefreshToken(realm, client, user, scopes, uuid.New().String())
		if err != nil {
			return nil, err
		}
		resp.RefreshToken = refresh
		s.metrics.RecordTokenIssued("refresh", grantType)
	}

	return resp, nil
}

// createRefreshToken mints a refresh token in the realm's configured format
// and persists its hash under the given rotation family.
func (s *GrantService) createRefreshToken(
	realm *models.Realm,
	client *models.Client,
	user *models.User,
	scopes, familyID string,
) (string, error) {
	var plain string
	var expiresAt time.Time

	if realm.RefreshTokenFormat == models.RefreshFormatJWT {
		issued, err := s.issuer.IssueRefreshJWT(realm, token.AccessTokenParams{
			Subject:  user.ID,
			ClientID: client.ClientID,
			Scopes:   scopes,
		})
		if err != nil {
			return "", err
		}
		plain = issued.Value
		expiresAt = issued.ExpiresAt
	} else {
		rawBytes, err := util.CryptoRandomBytes(32)
		if err != nil {
			return "", fmt.Errorf("failed to generate refresh token: %w", err)
		}
		plain = base64.RawURLEncoding.EncodeToString(rawBytes)
		expiresAt = time.Now().Add(realm.RefreshTokenLifetime())
	}

	record := &models.RefreshToken{
		TokenHash: util.SHA256Hex(plain),
		FamilyID:  familyID,
		RealmID:   realm.ID,
		ClientID:  client.ClientID,
		UserID:    user.ID,
		Scopes:    scopes,
		Status:    models.RefreshStatusActive,
		IssuedAt:  time.Now(),
		ExpiresAt: expiresAt,
	}
	if err := s.store.CreateRefreshToken(record); err != nil {
		return "", fmt.Errorf("failed to save refresh token: %w", err)
	}
	return plain, nil
}

// resolveScopes validates a requested scope against the client and defaults
// to the client's full allowance when absent.
func resolveScopes(client *models.Client, requested string) (string, error) {
	if requested == "" {
		return client.Scopes, nil
	}
	if !isScopeSubset(client.Scopes, requested) {
		return "", ErrInvalidScope
	}
	return strings.Join(strings.Fields(requested), " "), nil
}

// grantResult maps a handler error onto a metrics label.
func grantResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidClient), errors.Is(err, ErrInvalidClientCredentials):
		return "invalid_client"
	case errors.Is(err, ErrInvalidGrant), errors.Is(err, ErrInvalidCodeVerifier),
		errors.Is(err, ErrPKCERequired), errors.Is(err, ErrInvalidScope):
		return "invalid_grant"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		var steps *AdditionalStepsError
		if errors.As(err, &steps) {
			return "requires_steps"
		}
		return "error"
	}
}
