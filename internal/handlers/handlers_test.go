package handlers

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JunaYa/ferriskey/internal/auth"
	"github.com/JunaYa/ferriskey/internal/cache"
	"github.com/JunaYa/ferriskey/internal/keys"
	"github.com/JunaYa/ferriskey/internal/login"
	"github.com/JunaYa/ferriskey/internal/metrics"
	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/services"
	"github.com/JunaYa/ferriskey/internal/store"
	"github.com/JunaYa/ferriskey/internal/token"
	"github.com/JunaYa/ferriskey/internal/util"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	store  *store.Store
	authz  *services.AuthorizationService
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.New("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	recorder := metrics.NewNoop()
	registry := keys.NewRegistry(s)
	issuer := token.NewIssuer("http://localhost:8080", registry)
	provider := auth.NewLocalAuthProvider(s, 4)
	lockout := auth.NewLockout(cache.NewMemoryCounter())
	machine := login.NewMachine(s, provider, lockout, 30*time.Minute, 3)

	realms := services.NewRealmService(s, cache.NewMemoryCache[models.Realm]())
	authz := services.NewAuthorizationService(s)
	grants := services.NewGrantService(s, realms, authz, machine, issuer, recorder)

	tokenHandler := NewTokenHandler(grants)
	authorizeHandler := NewAuthorizeHandler(s, realms, authz, machine)
	loginHandler := NewLoginHandler(realms, authz, machine, recorder)
	oidcHandler := NewOIDCHandler(realms, registry, issuer)
	healthHandler := NewHealthHandler(s)

	r := gin.New()
	r.Use(sessions.Sessions("ferriskey_session", cookie.NewStore([]byte("test-secret"))))
	r.GET("/health", healthHandler.Health)
	realm := r.Group("/realms/:realm")
	{
		realm.GET("/.well-known/openid-configuration", oidcHandler.Discovery)
		realm.GET("/protocol/openid-connect/certs", oidcHandler.Certs)
		realm.GET("/protocol/openid-connect/auth", authorizeHandler.Authorize)
		realm.POST("/protocol/openid-connect/token", tokenHandler.Token)
		realm.POST("/login-actions/authenticate", loginHandler.Authenticate)
	}

	return &testServer{store: s, authz: authz, router: r}
}

func (ts *testServer) createRealm(t *testing.T, name string) *models.Realm {
	t.Helper()
	realm := &models.Realm{
		Name:                   name,
		Enabled:                true,
		SigningAlgorithm:       "RS256",
		CodeTTL:                600,
		AccessTokenTTL:         3600,
		RefreshTokenTTL:        86400,
		RefreshRotationEnabled: true,
		RefreshTokenFormat:     models.RefreshFormatOpaque,
		MaxLoginFailures:       5,
		LockoutSeconds:         900,
	}
	require.NoError(t, ts.store.CreateRealm(realm))
	return realm
}

func (ts *testServer) createUser(t *testing.T, realm *models.Realm, username, password string) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.New().String(),
		RealmID:  realm.ID,
		Username: username,
		Email:    username + "@example.com",
		FullName: "Test User",
		Enabled:  true,
	}
	require.NoError(t, user.SetPassword(password))
	require.NoError(t, ts.store.CreateUser(user))
	return user
}

func (ts *testServer) createPublicClient(t *testing.T, realm *models.Realm) *models.Client {
	t.Helper()
	client := &models.Client{
		RealmID:      realm.ID,
		ClientID:     "spa",
		Name:         "Single Page App",
		ClientType:   models.ClientTypePublic,
		GrantTypes:   "authorization_code refresh_token",
		RedirectURIs: models.StringArray{"https://app.example.com/cb"},
		Scopes:       "openid profile email",
		Enabled:      true,
	}
	require.NoError(t, ts.store.CreateClient(client))
	return client
}

func (ts *testServer) createConfidentialClient(t *testing.T, realm *models.Realm) (*models.Client, string) {
	t.Helper()
	client := &models.Client{
		RealmID:      realm.ID,
		ClientID:     "backend",
		Name:         "Backend Service",
		ClientType:   models.ClientTypeConfidential,
		GrantTypes:   "authorization_code password client_credentials refresh_token",
		RedirectURIs: models.StringArray{"https://app.example.com/cb"},
		Scopes:       "openid profile email",
		Enabled:      true,
	}
	secret, err := client.GenerateSecret()
	require.NoError(t, err)
	require.NoError(t, ts.store.CreateClient(client))
	return client, secret
}

func (ts *testServer) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) postJSON(path string, body any) *httptest.ResponseRecorder {
	encoded, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(encoded)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Public client with PKCE walks the whole authorization code flow: auth
// request, login, code redirect, token exchange.
func TestAuthorizationCodeFlowWithPKCE(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	ts.createPublicClient(t, realm)
	ts.createUser(t, realm, "alice", "s3cret-password")

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	authURL := "/realms/master/protocol/openid-connect/auth?" + url.Values{
		"response_type":         {"code"},
		"client_id":             {"spa"},
		"redirect_uri":          {"https://app.example.com/cb"},
		"scope":                 {"openid profile"},
		"state":                 {"xyz-state"},
		"nonce":                 {"nonce-1"},
		"code_challenge":        {s256Challenge(verifier)},
		"code_challenge_method": {"S256"},
	}.Encode()

	w := ts.get(authURL)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sessionID, _ := decodeJSON(t, w)["session_id"].(string)
	require.NotEmpty(t, sessionID)

	w = ts.postJSON("/realms/master/login-actions/authenticate", gin.H{
		"session_id": sessionID,
		"username":   "alice",
		"password":   "s3cret-password",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeJSON(t, w)
	assert.Equal(t, login.StatusSuccess, body["status"])

	redirectURI, _ := body["redirect_uri"].(string)
	require.NotEmpty(t, redirectURI)
	parsed, err := url.Parse(redirectURI)
	require.NoError(t, err)
	assert.Equal(t, "xyz-state", parsed.Query().Get("state"))
	code := parsed.Query().Get("code")
	require.NotEmpty(t, code)

	w = ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"spa"},
		"code":          {code},
		"redirect_uri":  {"https://app.example.com/cb"},
		"code_verifier": {verifier},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decodeJSON(t, w)
	assert.NotEmpty(t, tokens["access_token"])
	assert.NotEmpty(t, tokens["refresh_token"])
	assert.NotEmpty(t, tokens["id_token"])
	assert.Equal(t, "Bearer", tokens["token_type"])

	// Replaying the code is rejected
	w = ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {"spa"},
		"code":          {code},
		"redirect_uri":  {"https://app.example.com/cb"},
		"code_verifier": {verifier},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeJSON(t, w)["error"])
}

// Confidential client direct grant: tokens without an id_token unless the
// openid scope was requested.
func TestPasswordGrant(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	_, secret := ts.createConfidentialClient(t, realm)
	ts.createUser(t, realm, "bob", "hunter2hunter2")

	w := ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
		"grant_type":    {"password"},
		"client_id":     {"backend"},
		"client_secret": {secret},
		"username":      {"bob"},
		"password":      {"hunter2hunter2"},
		"scope":         {"profile email"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decodeJSON(t, w)
	assert.NotEmpty(t, tokens["access_token"])
	assert.NotEmpty(t, tokens["refresh_token"])
	assert.Nil(t, tokens["id_token"], "no id_token without openid scope")

	// With openid the response carries an ID token
	w = ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
		"grant_type":    {"password"},
		"client_id":     {"backend"},
		"client_secret": {secret},
		"username":      {"bob"},
		"password":      {"hunter2hunter2"},
		"scope":         {"openid profile"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeJSON(t, w)["id_token"])
}

func TestPasswordGrantUniformInvalidCredentials(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	_, secret := ts.createConfidentialClient(t, realm)
	ts.createUser(t, realm, "bob", "hunter2hunter2")

	attempt := func(username, password string) *httptest.ResponseRecorder {
		return ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
			"grant_type":    {"password"},
			"client_id":     {"backend"},
			"client_secret": {secret},
			"username":      {username},
			"password":      {password},
		})
	}

	wrongPassword := attempt("bob", "wrong")
	unknownUser := attempt("nobody", "wrong")

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.JSONEq(t, wrongPassword.Body.String(), unknownUser.Body.String(),
		"unknown user and wrong password must be indistinguishable")
}

// Basic auth carries the client credentials for client_credentials.
func TestClientCredentialsGrantBasicAuth(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	_, secret := ts.createConfidentialClient(t, realm)

	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {"profile"},
	}
	req := httptest.NewRequest(http.MethodPost,
		"/realms/master/protocol/openid-connect/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("backend", secret)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decodeJSON(t, w)
	assert.NotEmpty(t, tokens["access_token"])
	assert.Nil(t, tokens["refresh_token"], "client_credentials never yields a refresh token")

	// A wrong secret gets the same invalid_client shape as an unknown client
	req = httptest.NewRequest(http.MethodPost,
		"/realms/master/protocol/openid-connect/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("backend", "wrong-secret")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_client", decodeJSON(t, w)["error"])
}

// Same code exchanged concurrently: exactly one request wins.
func TestConcurrentCodeExchange(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	client, secret := ts.createConfidentialClient(t, realm)

	user := ts.createUser(t, realm, "carol", "pass-word-123")
	code, err := ts.authz.CreateAuthorizationCode(realm, &models.LoginSession{
		RealmID:     realm.ID,
		State:       models.LoginStateComplete,
		UserID:      user.ID,
		ClientID:    client.ClientID,
		RedirectURI: "https://app.example.com/cb",
		Scopes:      "openid profile",
	})
	require.NoError(t, err)

	const workers = 8
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
				"grant_type":    {"authorization_code"},
				"client_id":     {"backend"},
				"client_secret": {secret},
				"code":          {code},
				"redirect_uri":  {"https://app.example.com/cb"},
			})
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, status := range codes {
		switch status {
		case http.StatusOK:
			succeeded++
		default:
			assert.Equal(t, http.StatusBadRequest, status)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent exchange may win")
}

// Expired codes answer exactly like unknown codes.
func TestExpiredCodeIndistinguishableFromUnknown(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	client, secret := ts.createConfidentialClient(t, realm)
	user := ts.createUser(t, realm, "dave", "pass-word-123")

	plain := "expired-code-plaintext"
	require.NoError(t, ts.store.CreateAuthorizationCode(&models.AuthorizationCode{
		CodeHash:    util.SHA256Hex(plain),
		RealmID:     realm.ID,
		ClientID:    client.ClientID,
		UserID:      user.ID,
		RedirectURI: "https://app.example.com/cb",
		Scopes:      "openid",
		ExpiresAt:   time.Now().Add(-time.Second),
	}))

	exchange := func(code string) *httptest.ResponseRecorder {
		return ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {"backend"},
			"client_secret": {secret},
			"code":          {code},
			"redirect_uri":  {"https://app.example.com/cb"},
		})
	}

	expired := exchange(plain)
	unknown := exchange("fabricated-code")

	assert.Equal(t, http.StatusBadRequest, expired.Code)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.JSONEq(t, expired.Body.String(), unknown.Body.String())
}

func TestRefreshTokenRotationOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	_, secret := ts.createConfidentialClient(t, realm)
	ts.createUser(t, realm, "erin", "pass-word-123")

	w := ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
		"grant_type":    {"password"},
		"client_id":     {"backend"},
		"client_secret": {secret},
		"username":      {"erin"},
		"password":      {"pass-word-123"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first, _ := decodeJSON(t, w)["refresh_token"].(string)
	require.NotEmpty(t, first)

	refresh := func(token string) *httptest.ResponseRecorder {
		return ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {"backend"},
			"client_secret": {secret},
			"refresh_token": {token},
		})
	}

	w = refresh(first)
	require.Equal(t, http.StatusOK, w.Code)
	second, _ := decodeJSON(t, w)["refresh_token"].(string)
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)

	// Replaying the rotated token revokes the whole family
	assert.Equal(t, http.StatusBadRequest, refresh(first).Code)
	assert.Equal(t, http.StatusBadRequest, refresh(second).Code)
}

// A browser with a live session skips the login step on the next
// authorization request.
func TestAuthorizeSingleSignOn(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	ts.createPublicClient(t, realm)
	ts.createUser(t, realm, "frank", "pass-word-123")

	verifier := "another-verifier-value-with-entropy-1234"
	authURL := "/realms/master/protocol/openid-connect/auth?" + url.Values{
		"response_type":         {"code"},
		"client_id":             {"spa"},
		"redirect_uri":          {"https://app.example.com/cb"},
		"scope":                 {"openid"},
		"state":                 {"first"},
		"code_challenge":        {s256Challenge(verifier)},
		"code_challenge_method": {"S256"},
	}.Encode()

	w := ts.get(authURL)
	require.Equal(t, http.StatusOK, w.Code)
	sessionID, _ := decodeJSON(t, w)["session_id"].(string)

	w = ts.postJSON("/realms/master/login-actions/authenticate", gin.H{
		"session_id": sessionID,
		"username":   "frank",
		"password":   "pass-word-123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	// Same browser, new authorization request: immediate code redirect
	w = ts.get(authURL, cookies...)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", location.Host)
	assert.NotEmpty(t, location.Query().Get("code"))

	// Without the cookie the login step is still required
	w = ts.get(authURL)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decodeJSON(t, w)["session_id"])
}

func TestAuthorizeValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	ts.createPublicClient(t, realm)

	base := "/realms/master/protocol/openid-connect/auth?"

	// Public client without a challenge
	w := ts.get(base + url.Values{
		"response_type": {"code"},
		"client_id":     {"spa"},
		"redirect_uri":  {"https://app.example.com/cb"},
	}.Encode())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unregistered redirect URI
	w = ts.get(base + url.Values{
		"response_type":  {"code"},
		"client_id":      {"spa"},
		"redirect_uri":   {"https://evil.example.com/cb"},
		"code_challenge": {"challenge"},
	}.Encode())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown realm
	w = ts.get("/realms/ghost/protocol/openid-connect/auth?response_type=code")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTokenEndpointErrors(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	ts.createConfidentialClient(t, realm)

	// Unsupported grant type
	w := ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:device_code"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unsupported_grant_type", decodeJSON(t, w)["error"])

	// Unknown realm
	w = ts.postForm("/realms/ghost/protocol/openid-connect/token", url.Values{
		"grant_type": {"password"},
		"client_id":  {"backend"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Unknown client
	w = ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
		"grant_type": {"password"},
		"client_id":  {"ghost"},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_client", decodeJSON(t, w)["error"])
}

func TestDiscoveryDocument(t *testing.T) {
	ts := newTestServer(t)
	ts.createRealm(t, "master")

	w := ts.get("/realms/master/.well-known/openid-configuration")
	require.Equal(t, http.StatusOK, w.Code)
	doc := decodeJSON(t, w)

	issuer := "http://localhost:8080/realms/master"
	assert.Equal(t, issuer, doc["issuer"])
	assert.Equal(t, issuer+"/protocol/openid-connect/auth", doc["authorization_endpoint"])
	assert.Equal(t, issuer+"/protocol/openid-connect/token", doc["token_endpoint"])
	assert.Equal(t, issuer+"/protocol/openid-connect/certs", doc["jwks_uri"])

	assert.Equal(t, http.StatusNotFound,
		ts.get("/realms/ghost/.well-known/openid-configuration").Code)
}

func TestCertsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	realm := ts.createRealm(t, "master")
	_, secret := ts.createConfidentialClient(t, realm)

	// Force key generation by issuing a token
	w := ts.postForm("/realms/master/protocol/openid-connect/token", url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"backend"},
		"client_secret": {secret},
		"scope":         {"profile"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.get("/realms/master/protocol/openid-connect/certs")
	require.Equal(t, http.StatusOK, w.Code)
	var jwks struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)
	assert.NotEmpty(t, jwks.Keys[0]["kid"])
	assert.Equal(t, "RS256", jwks.Keys[0]["alg"])
	assert.Equal(t, "sig", jwks.Keys[0]["use"])
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeJSON(t, w)["status"])
}
