// Package login implements the authentication state machine. Each login
// attempt is a persisted LoginSession row; transitions are driven by the
// login-actions endpoint for browser flows and run synchronously for the
// password grant.
package login

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/JunaYa/ferriskey/internal/auth"
	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/store"

	"github.com/google/uuid"
)

// Step outcome statuses, as reported on the wire.
const (
	StatusSuccess         = "success"
	StatusRequiresActions = "requires_actions"
	StatusRequiresOTP     = "requires_otp_challenge"
	StatusFailed          = "failed"
)

var (
	// ErrSessionNotFound covers unknown, expired, and already-terminal
	// sessions; callers start a new attempt.
	ErrSessionNotFound = errors.New("login session not found or expired")

	// ErrLockedOut is re-exported so handlers switch on one package
	ErrLockedOut = auth.ErrLockedOut
)

// StepInput carries the proof for the current step.
type StepInput struct {
	Username string
	Password string
	OTP      string
}

// Outcome is the result of one transition.
type Outcome struct {
	Status          string
	Session         *models.LoginSession
	User            *models.User
	RequiredActions []string
}

// Machine drives login sessions through their states.
type Machine struct {
	store    *store.Store
	provider auth.Provider
	lockout  *auth.Lockout

	sessionTTL     time.Duration
	otpMaxAttempts int
}

func NewMachine(
	s *store.Store,
	provider auth.Provider,
	lockout *auth.Lockout,
	sessionTTL time.Duration,
	otpMaxAttempts int,
) *Machine {
	if otpMaxAttempts <= 0 {
		otpMaxAttempts = 3
	}
	return &Machine{
		store:          s,
		provider:       provider,
		lockout:        lockout,
		sessionTTL:     sessionTTL,
		otpMaxAttempts: otpMaxAttempts,
	}
}

// FlowContext is the authorization-request context a redirect-flow session
// carries until completion.
type FlowContext struct {
	ClientID            string
	RedirectURI         string
	Scopes              string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// Begin creates a new session in awaiting_credentials.
func (m *Machine) Begin(realm *models.Realm, flow FlowContext) (*models.LoginSession, error) {
	session := &models.LoginSession{
		ID:                  uuid.New().String(),
		RealmID:             realm.ID,
		State:               models.LoginStateAwaitingCredentials,
		ClientID:            flow.ClientID,
		RedirectURI:         flow.RedirectURI,
		Scopes:              flow.Scopes,
		OAuthState:          flow.State,
		Nonce:               flow.Nonce,
		CodeChallenge:       flow.CodeChallenge,
		CodeChallengeMethod: flow.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(m.sessionTTL),
	}
	if err := m.store.CreateLoginSession(session); err != nil {
		return nil, err
	}
	return session, nil
}

// Step loads a session and applies one transition.
func (m *Machine) Step(
	ctx context.Context,
	realm *models.Realm,
	sessionID string,
	input StepInput,
) (*Outcome, error) {
	session, err := m.store.GetLoginSession(sessionID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if session.RealmID != realm.ID || session.IsExpired() || session.IsTerminal() {
		return nil, ErrSessionNotFound
	}

	outcome, err := m.transition(ctx, realm, session, input)
	if err != nil {
		return nil, err
	}
	if err := m.store.UpdateLoginSession(session); err != nil {
		return nil, err
	}
	return outcome, nil
}

// RunDirect executes the machine synchronously for the password grant. The
// session is ephemeral; any non-terminal state is returned to the caller as
// a requires-additional-steps outcome rather than silently succeeding.
func (m *Machine) RunDirect(
	ctx context.Context,
	realm *models.Realm,
	input StepInput,
) (*Outcome, error) {
	session := &models.LoginSession{
		ID:        uuid.New().String(),
		RealmID:   realm.ID,
		State:     models.LoginStateAwaitingCredentials,
		ExpiresAt: time.Now().Add(m.sessionTTL),
	}

	outcome, err := m.transition(ctx, realm, session, input)
	if err != nil {
		return nil, err
	}

	// When the second factor was supplied up front, run the OTP step in the
	// same request.
	if outcome.Status == StatusRequiresOTP && input.OTP != "" {
		outcome, err = m.transition(ctx, realm, session, input)
		if err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

func (m *Machine) transition(
	ctx context.Context,
	realm *models.Realm,
	session *models.LoginSession,
	input StepInput,
) (*Outcome, error) {
	switch session.State {
	case models.LoginStateAwaitingCredentials:
		return m.verifyCredentials(ctx, realm, session, input)
	case models.LoginStateRequiresOTP:
		return m.verifyOTP(ctx, realm, session, input)
	case models.LoginStateRequiresAction:
		// Actions are resolved out-of-band; report them again
		return m.requiresActions(ctx, realm, session)
	default:
		return nil, ErrSessionNotFound
	}
}

func (m *Machine) verifyCredentials(
	ctx context.Context,
	realm *models.Realm,
	session *models.LoginSession,
	input StepInput,
) (*Outcome, error) {
	if err := m.lockout.Check(ctx, realm, input.Username); err != nil {
		return nil, err
	}

	user, err := m.provider.Authenticate(ctx, realm, input.Username, input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			if m.lockout.RecordFailure(ctx, realm, input.Username) {
				log.Printf("[Login] account locked in realm %q after repeated failures", realm.Name)
			}
			session.State = models.LoginStateFailed
			return &Outcome{Status: StatusFailed, Session: session}, nil
		}
		return nil, err
	}

	session.UserID = user.ID

	if len(user.RequiredActions) > 0 {
		session.State = models.LoginStateRequiresAction
		return &Outcome{
			Status:          StatusRequiresActions,
			Session:         session,
			User:            user,
			RequiredActions: user.RequiredActions,
		}, nil
	}

	if user.HasSecondFactor() {
		session.State = models.LoginStateRequiresOTP
		return &Outcome{Status: StatusRequiresOTP, Session: session, User: user}, nil
	}

	// The failure counter stays until the whole login succeeds, second
	// factor included.
	m.lockout.Clear(ctx, realm, input.Username)
	session.State = models.LoginStateComplete
	return &Outcome{Status: StatusSuccess, Session: session, User: user}, nil
}

func (m *Machine) verifyOTP(
	ctx context.Context,
	realm *models.Realm,
	session *models.LoginSession,
	input StepInput,
) (*Outcome, error) {
	user, err := m.store.GetUserByID(realm.ID, session.UserID)
	if err != nil {
		return nil, err
	}
	if err := m.lockout.Check(ctx, realm, user.Username); err != nil {
		return nil, err
	}

	if !auth.VerifyTOTP(user.TOTPSecret, input.OTP) {
		// Wrong codes count toward the same lockout as wrong passwords, so
		// the second factor cannot be guessed one session at a time.
		if m.lockout.RecordFailure(ctx, realm, user.Username) {
			log.Printf("[Login] account locked in realm %q after repeated failures", realm.Name)
		}
		session.OTPAttempts++
		if session.OTPAttempts >= m.otpMaxAttempts {
			session.State = models.LoginStateFailed
			return &Outcome{Status: StatusFailed, Session: session}, nil
		}
		// Under the bound: stay in the challenge state
		return &Outcome{Status: StatusRequiresOTP, Session: session}, nil
	}

	m.lockout.Clear(ctx, realm, user.Username)
	session.State = models.LoginStateComplete
	return &Outcome{Status: StatusSuccess, Session: session, User: user}, nil
}

func (m *Machine) requiresActions(
	ctx context.Context,
	realm *models.Realm,
	session *models.LoginSession,
) (*Outcome, error) {
	user, err := m.store.GetUserByID(realm.ID, session.UserID)
	if err != nil {
		return nil, err
	}
	if len(user.RequiredActions) == 0 {
		// Actions were resolved since the last step; continue the flow
		if user.HasSecondFactor() {
			session.State = models.LoginStateRequiresOTP
			return &Outcome{Status: StatusRequiresOTP, Session: session, User: user}, nil
		}
		m.lockout.Clear(ctx, realm, user.Username)
		session.State = models.LoginStateComplete
		return &Outcome{Status: StatusSuccess, Session: session, User: user}, nil
	}
	return &Outcome{
		Status:          StatusRequiresActions,
		Session:         session,
		User:            user,
		RequiredActions: user.RequiredActions,
	}, nil
}
