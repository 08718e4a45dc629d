package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/JunaYa/ferriskey/internal/login"
	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/services"
	"github.com/JunaYa/ferriskey/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Browser session keys. One cookie session covers all realms, so the realm
// id is stored next to the user id and checked on every use.
const (
	sessionKeyUserID  = "user_id"
	sessionKeyRealmID = "realm_id"
)

// AuthorizeHandler serves the authorization endpoint of the code flow.
type AuthorizeHandler struct {
	store   *store.Store
	realms  *services.RealmService
	authz   *services.AuthorizationService
	machine *login.Machine
}

func NewAuthorizeHandler(
	s *store.Store,
	realms *services.RealmService,
	authz *services.AuthorizationService,
	machine *login.Machine,
) *AuthorizeHandler {
	return &AuthorizeHandler{
		store:   s,
		realms:  realms,
		authz:   authz,
		machine: machine,
	}
}

// Authorize handles GET /realms/:realm/protocol/openid-connect/auth. A
// browser with a live authenticated session for this realm gets the code
// redirect immediately; everyone else gets a login session reference.
func (h *AuthorizeHandler) Authorize(c *gin.Context) {
	realm, err := h.realms.Resolve(c.Request.Context(), c.Param("realm"))
	if err != nil {
		writeAuthorizeError(c, err)
		return
	}

	req, err := h.authz.ValidateAuthorizationRequest(realm,
		c.Query("client_id"),
		c.Query("redirect_uri"),
		c.Query("response_type"),
		c.Query("scope"),
		c.Query("state"),
		c.Query("nonce"),
		c.Query("code_challenge"),
		c.Query("code_challenge_method"),
	)
	if err != nil {
		writeAuthorizeError(c, err)
		return
	}

	flow := login.FlowContext{
		ClientID:            req.Client.ClientID,
		RedirectURI:         req.RedirectURI,
		Scopes:              req.Scopes,
		State:               req.State,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}

	// Single sign-on: skip the login step when the browser already holds an
	// authenticated session for this realm.
	if user := h.sessionUser(c, realm); user != nil {
		session := &models.LoginSession{
			RealmID:             realm.ID,
			State:               models.LoginStateComplete,
			UserID:              user.ID,
			ClientID:            flow.ClientID,
			RedirectURI:         flow.RedirectURI,
			Scopes:              flow.Scopes,
			OAuthState:          flow.State,
			Nonce:               flow.Nonce,
			CodeChallenge:       flow.CodeChallenge,
			CodeChallengeMethod: flow.CodeChallengeMethod,
		}
		code, err := h.authz.CreateAuthorizationCode(realm, session)
		if err != nil {
			log.Printf("[Authorize] failed to create code: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
			return
		}
		c.Redirect(http.StatusFound, buildCodeRedirect(flow.RedirectURI, code, flow.State))
		return
	}

	loginSession, err := h.machine.Begin(realm, flow)
	if err != nil {
		log.Printf("[Authorize] failed to begin login session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": loginSession.ID,
		"status":     loginSession.State,
	})
}

// sessionUser resolves the cookie session to an enabled user of the given
// realm, or nil when there is no usable session.
func (h *AuthorizeHandler) sessionUser(c *gin.Context, realm *models.Realm) *models.User {
	session := sessions.Default(c)
	userID, _ := session.Get(sessionKeyUserID).(string)
	realmID, _ := session.Get(sessionKeyRealmID).(uint)
	if userID == "" || realmID != realm.ID {
		return nil
	}

	user, err := h.store.GetUserByID(realm.ID, userID)
	if err != nil || !user.Enabled {
		return nil
	}
	return user
}

// buildCodeRedirect appends code and state to the validated redirect URI.
func buildCodeRedirect(redirectURI, code, state string) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		// The URI was validated against the client registration already
		return redirectURI
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// writeAuthorizeError reports authorization request failures. Redirecting
// errors back is unsafe before the client and redirect URI are validated, so
// everything is reported directly.
func writeAuthorizeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRealm):
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "invalid_request",
			"error_description": "Realm not found",
		})
	case errors.Is(err, services.ErrInvalidClient):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_client",
			"error_description": "Unknown client or flow not allowed",
		})
	case errors.Is(err, services.ErrInvalidRedirectURI):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "redirect_uri is not registered for this client",
		})
	case errors.Is(err, services.ErrUnsupportedResponseType):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "unsupported_response_type",
			"error_description": "Only response_type=code is supported",
		})
	case errors.Is(err, services.ErrInvalidScope):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_scope",
			"error_description": "Requested scope exceeds the client's allowance",
		})
	case errors.Is(err, services.ErrPKCERequired):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "A valid PKCE code_challenge is required for this client",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
	}
}
