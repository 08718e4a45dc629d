package handlers

import (
	"errors"
	"net/http"

	"github.com/JunaYa/ferriskey/internal/services"

	"github.com/gin-gonic/gin"
)

// TokenHandler serves the realm token endpoint. All four grant types go
// through the grant service; this layer only parses the form and maps the
// error taxonomy onto OAuth2 wire errors.
type TokenHandler struct {
	grants *services.GrantService
}

func NewTokenHandler(gs *services.GrantService) *TokenHandler {
	return &TokenHandler{grants: gs}
}

// Token handles POST /realms/:realm/protocol/openid-connect/token.
func (h *TokenHandler) Token(c *gin.Context) {
	grantType := c.PostForm("grant_type")
	switch grantType {
	case services.GrantAuthorizationCode,
		services.GrantPassword,
		services.GrantClientCredentials,
		services.GrantRefreshToken:
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_grant_type",
			"error_description": "Supported grant types: authorization_code, password, client_credentials, refresh_token",
		})
		return
	}

	// Prefer HTTP Basic Auth (RFC 6749 §2.3.1); fall back to form-body
	// parameters.
	clientID, clientSecret, ok := c.Request.BasicAuth()
	if !ok {
		clientID = c.PostForm("client_id")
		clientSecret = c.PostForm("client_secret")
	}

	req := &services.TokenRequest{
		GrantType:    grantType,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Code:         c.PostForm("code"),
		RedirectURI:  c.PostForm("redirect_uri"),
		CodeVerifier: c.PostForm("code_verifier"),
		Username:     c.PostForm("username"),
		Password:     c.PostForm("password"),
		OTP:          c.PostForm("otp"),
		RefreshToken: c.PostForm("refresh_token"),
		Scope:        c.PostForm("scope"),
	}

	resp, err := h.grants.HandleTokenRequest(c.Request.Context(), c.Param("realm"), req)
	if err != nil {
		writeTokenError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeTokenError maps a grant service error onto the RFC 6749 §5.2 wire
// format. Invalid client and invalid client credentials share one response
// so probing cannot tell them apart.
func writeTokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRealm):
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "invalid_request",
			"error_description": "Realm not found",
		})
	case errors.Is(err, services.ErrInvalidClient),
		errors.Is(err, services.ErrInvalidClientCredentials):
		c.Header("WWW-Authenticate", `Basic realm="ferriskey"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_client",
			"error_description": "Client authentication failed",
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":             "invalid_grant",
			"error_description": "Invalid user credentials",
		})
	case errors.Is(err, services.ErrInvalidGrant),
		errors.Is(err, services.ErrInvalidCodeVerifier),
		errors.Is(err, services.ErrPKCERequired):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_grant",
			"error_description": "Grant is invalid, expired, or already used",
		})
	case errors.Is(err, services.ErrInvalidScope):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_scope",
			"error_description": "Requested scope exceeds the client's allowance",
		})
	case errors.Is(err, services.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "invalid_grant",
			"error_description": "Account is temporarily locked",
		})
	default:
		var steps *services.AdditionalStepsError
		if errors.As(err, &steps) {
			// Not a failure: the login needs more steps before tokens can
			// be issued.
			body := gin.H{"status": steps.Status}
			if len(steps.RequiredActions) > 0 {
				body["required_actions"] = steps.RequiredActions
			}
			c.JSON(http.StatusOK, body)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":             "server_error",
			"error_description": "Token request failed",
		})
	}
}
