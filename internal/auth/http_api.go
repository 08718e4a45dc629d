package auth

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	httpclient "github.com/appleboy/go-httpclient"

	"github.com/JunaYa/ferriskey/internal/config"
	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/store"

	"github.com/google/uuid"
)

// HTTPAPIAuthProvider delegates password verification to an external HTTP
// API. On success the user is mirrored into the realm's user table so the
// rest of the flow (codes, tokens, sessions) works unchanged.
type HTTPAPIAuthProvider struct {
	config *config.Config
	store  *store.Store
	client *http.Client
}

// NewHTTPAPIAuthProvider creates a new HTTP API authentication provider
func NewHTTPAPIAuthProvider(cfg *config.Config, s *store.Store) *HTTPAPIAuthProvider {
	// #nosec G402 -- InsecureSkipVerify is user-configurable for development/testing
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.HTTPAPIInsecureSkipVerify,
		},
	}

	// Create HTTP client with automatic authentication
	client := httpclient.NewAuthClient(
		cfg.HTTPAPIAuthMode,
		cfg.HTTPAPIAuthSecret,
		httpclient.WithTimeout(cfg.HTTPAPITimeout),
		httpclient.WithTransport(transport),
		httpclient.WithHeaderName(cfg.HTTPAPIAuthHeader),
	)

	return &HTTPAPIAuthProvider{
		config: cfg,
		store:  s,
		client: client,
	}
}

// APIAuthRequest is the request payload sent to external API
type APIAuthRequest struct {
	Realm    string `json:"realm"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// APIAuthResponse is the expected response from external API
type APIAuthResponse struct {
	Success  bool   `json:"success"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Authenticate verifies credentials against the external HTTP API.
func (p *HTTPAPIAuthProvider) Authenticate(
	ctx context.Context,
	realm *models.Realm,
	username, password string,
) (*models.User, error) {
	reqBody := APIAuthRequest{
		Realm:    realm.Name,
		Username: username,
		Password: password,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.config.HTTPAPIURL,
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIConnection, err)
	}

	req.Header.Set("Content-Type", "application/json")

	// Authentication headers are automatically added by the HTTP client
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response", ErrHTTPAPIInvalidResp)
	}

	// Check HTTP status code before attempting to parse JSON
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, ErrInvalidCredentials
		}
		// Limit body preview to 200 characters to avoid overwhelming logs
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		return nil, fmt.Errorf(
			"%w: HTTP %d - %s",
			ErrHTTPAPIInvalidResp,
			resp.StatusCode,
			bodyPreview,
		)
	}

	var authResp APIAuthResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIInvalidResp, err)
	}

	if !authResp.Success {
		return nil, ErrInvalidCredentials
	}

	if authResp.UserID == "" {
		return nil, fmt.Errorf(
			"%w: external API returned success=true but missing user_id",
			ErrHTTPAPIInvalidResp,
		)
	}

	return p.mirrorUser(realm, username, &authResp)
}

// mirrorUser ensures a local user row exists for the externally verified
// identity.
func (p *HTTPAPIAuthProvider) mirrorUser(
	realm *models.Realm,
	username string,
	resp *APIAuthResponse,
) (*models.User, error) {
	user, err := p.store.GetUserByUsername(realm.ID, username)
	if err == nil {
		user.Email = resp.Email
		user.FullName = resp.FullName
		if err := p.store.UpdateUser(user); err != nil {
			return nil, fmt.Errorf("failed to update external user: %w", err)
		}
		return user, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}

	user = &models.User{
		ID:       uuid.New().String(),
		RealmID:  realm.ID,
		Username: username,
		Email:    resp.Email,
		FullName: resp.FullName,
		Enabled:  true,
		// No local password for external users
	}
	if err := p.store.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create external user: %w", err)
	}
	return user, nil
}

// Name returns provider name for logging
func (p *HTTPAPIAuthProvider) Name() string {
	return "http_api"
}
