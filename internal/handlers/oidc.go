package handlers

import (
	"log"
	"net/http"

	"github.com/JunaYa/ferriskey/internal/keys"
	"github.com/JunaYa/ferriskey/internal/services"
	"github.com/JunaYa/ferriskey/internal/token"

	"github.com/gin-gonic/gin"
)

// OIDCHandler serves the per-realm discovery document and the JWKS certs
// endpoint.
type OIDCHandler struct {
	realms   *services.RealmService
	registry *keys.Registry
	issuer   *token.Issuer
}

func NewOIDCHandler(
	realms *services.RealmService,
	registry *keys.Registry,
	issuer *token.Issuer,
) *OIDCHandler {
	return &OIDCHandler{
		realms:   realms,
		registry: registry,
		issuer:   issuer,
	}
}

// discoveryMetadata holds the OIDC Provider Metadata returned by the
// discovery endpoint.
type discoveryMetadata struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
	CodeChallengeMethodsSupported    []string `json:"code_challenge_methods_supported"`
}

// Discovery handles GET /realms/:realm/.well-known/openid-configuration.
func (h *OIDCHandler) Discovery(c *gin.Context) {
	realm, err := h.realms.Resolve(c.Request.Context(), c.Param("realm"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "invalid_request",
			"error_description": "Realm not found",
		})
		return
	}

	issuer := h.issuer.IssuerURL(realm.Name)
	meta := discoveryMetadata{
		Issuer:                           issuer,
		AuthorizationEndpoint:            issuer + "/protocol/openid-connect/auth",
		TokenEndpoint:                    issuer + "/protocol/openid-connect/token",
		JWKSURI:                          issuer + "/protocol/openid-connect/certs",
		ResponseTypesSupported:           []string{"code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{realm.SigningAlgorithm},
		ScopesSupported:                  []string{"openid", "profile", "email"},
		TokenEndpointAuthMethods: []string{
			"client_secret_basic",
			"client_secret_post",
			"none",
		},
		GrantTypesSupported: []string{
			services.GrantAuthorizationCode,
			services.GrantPassword,
			services.GrantClientCredentials,
			services.GrantRefreshToken,
		},
		ClaimsSupported: []string{
			"sub",
			"iss",
			"aud",
			"auth_time",
			"name",
			"preferred_username",
			"email",
			"email_verified",
			"updated_at",
		},
		CodeChallengeMethodsSupported: []string{"S256", "plain"},
	}
	c.JSON(http.StatusOK, meta)
}

// Certs handles GET /realms/:realm/protocol/openid-connect/certs. Retired
// keys stay published so older tokens keep verifying.
func (h *OIDCHandler) Certs(c *gin.Context) {
	realm, err := h.realms.Resolve(c.Request.Context(), c.Param("realm"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "invalid_request",
			"error_description": "Realm not found",
		})
		return
	}

	set, err := h.registry.JWKS(realm.ID)
	if err != nil {
		log.Printf("[OIDC] failed to render JWKS: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, set)
}
