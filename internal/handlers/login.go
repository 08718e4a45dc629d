package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/JunaYa/ferriskey/internal/login"
	"github.com/JunaYa/ferriskey/internal/metrics"
	"github.com/JunaYa/ferriskey/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// LoginHandler drives browser login sessions through the state machine, one
// transition per request.
type LoginHandler struct {
	realms  *services.RealmService
	authz   *services.AuthorizationService
	machine *login.Machine
	metrics metrics.Recorder
}

func NewLoginHandler(
	realms *services.RealmService,
	authz *services.AuthorizationService,
	machine *login.Machine,
	recorder metrics.Recorder,
) *LoginHandler {
	return &LoginHandler{
		realms:  realms,
		authz:   authz,
		machine: machine,
		metrics: recorder,
	}
}

type authenticateRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	OTP       string `json:"otp"`
}

// Authenticate handles POST /realms/:realm/login-actions/authenticate.
func (h *LoginHandler) Authenticate(c *gin.Context) {
	realm, err := h.realms.Resolve(c.Request.Context(), c.Param("realm"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "invalid_request",
			"error_description": "Realm not found",
		})
		return
	}

	var req authenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invalid_request",
			"error_description": "session_id is required",
		})
		return
	}

	outcome, err := h.machine.Step(c.Request.Context(), realm, req.SessionID, login.StepInput{
		Username: req.Username,
		Password: req.Password,
		OTP:      req.OTP,
	})
	if err != nil {
		switch {
		case errors.Is(err, login.ErrSessionNotFound):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":             "invalid_request",
				"error_description": "Login session not found or expired",
			})
		case errors.Is(err, login.ErrLockedOut):
			h.metrics.RecordLockout(realm.Name)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":             "invalid_grant",
				"error_description": "Account is temporarily locked",
			})
		default:
			log.Printf("[Login] step failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		}
		return
	}
	h.metrics.RecordLogin(realm.Name, outcome.Status)

	body := gin.H{"status": outcome.Status}

	switch outcome.Status {
	case login.StatusRequiresActions:
		body["required_actions"] = outcome.RequiredActions
	case login.StatusSuccess:
		if outcome.Session.IsRedirectFlow() {
			code, err := h.authz.CreateAuthorizationCode(realm, outcome.Session)
			if err != nil {
				log.Printf("[Login] failed to create code: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
				return
			}
			body["redirect_uri"] = buildCodeRedirect(
				outcome.Session.RedirectURI, code, outcome.Session.OAuthState)
		}
		h.establishBrowserSession(c, realm.ID, outcome.User.ID)
	}

	c.JSON(http.StatusOK, body)
}

// establishBrowserSession records the authenticated user in the cookie
// session so later authorization requests skip the login step.
func (h *LoginHandler) establishBrowserSession(c *gin.Context, realmID uint, userID string) {
	session := sessions.Default(c)
	session.Set(sessionKeyUserID, userID)
	session.Set(sessionKeyRealmID, realmID)
	if err := session.Save(); err != nil {
		// The login itself succeeded; only single sign-on is lost
		log.Printf("[Login] failed to save browser session: %v", err)
	}
}
