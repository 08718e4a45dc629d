package login

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/JunaYa/ferriskey/internal/auth"
	"github.com/JunaYa/ferriskey/internal/cache"
	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/store"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *store.Store
	machine *Machine
	realm   *models.Realm
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.New("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	realm := &models.Realm{Name: "master", Enabled: true, MaxLoginFailures: 5, LockoutSeconds: 900}
	require.NoError(t, s.CreateRealm(realm))

	machine := NewMachine(
		s,
		auth.NewLocalAuthProvider(s, 2),
		auth.NewLockout(cache.NewMemoryCounter()),
		30*time.Minute,
		3,
	)
	return &fixture{store: s, machine: machine, realm: realm}
}

func (f *fixture) createUser(t *testing.T, username, password string, mutate func(*models.User)) *models.User {
	t.Helper()
	user := &models.User{
		ID: uuid.New().String(), RealmID: f.realm.ID,
		Username: username, Enabled: true,
	}
	require.NoError(t, user.SetPassword(password))
	if mutate != nil {
		mutate(user)
	}
	require.NoError(t, f.store.CreateUser(user))
	return user
}

func TestStepValidCredentialsCompletes(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice", "pw", nil)
	ctx := context.Background()

	session, err := f.machine.Begin(f.realm, FlowContext{
		ClientID: "web-app", RedirectURI: "https://app/cb", Scopes: "openid",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoginStateAwaitingCredentials, session.State)
	assert.True(t, session.IsRedirectFlow())

	outcome, err := f.machine.Step(ctx, f.realm, session.ID, StepInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, user.ID, outcome.User.ID)

	// Persisted session reflects the terminal state
	got, err := f.store.GetLoginSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginStateComplete, got.State)

	// A terminal session cannot be stepped again
	_, err = f.machine.Step(ctx, f.realm, session.ID, StepInput{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStepInvalidCredentialsIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "pw", nil)
	ctx := context.Background()

	session, err := f.machine.Begin(f.realm, FlowContext{})
	require.NoError(t, err)

	outcome, err := f.machine.Step(ctx, f.realm, session.ID, StepInput{Username: "alice", Password: "wrong"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Nil(t, outcome.User)

	got, err := f.store.GetLoginSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoginStateFailed, got.State)
}

func TestStepUnknownUserSameOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.machine.Begin(f.realm, FlowContext{})
	require.NoError(t, err)

	outcome, err := f.machine.Step(ctx, f.realm, session.ID, StepInput{Username: "ghost", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status, "unknown user and wrong password look identical")
}

func TestStepRequiredActions(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "alice", "pw", func(u *models.User) {
		u.RequiredActions = models.StringArray{models.ActionVerifyEmail}
	})
	ctx := context.Background()

	session, err := f.machine.Begin(f.realm, FlowContext{})
	require.NoError(t, err)

	outcome, err := f.machine.Step(ctx, f.realm, session.ID, StepInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresActions, outcome.Status)
	assert.Equal(t, []string{models.ActionVerifyEmail}, outcome.RequiredActions)

	// Stepping again without resolving the action reports it again
	outcome, err = f.machine.Step(ctx, f.realm, session.ID, StepInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresActions, outcome.Status)

	// Resolving the action out-of-band lets the flow continue
	user.RequiredActions = models.StringArray{}
	require.NoError(t, f.store.UpdateUser(user))

	outcome, err = f.machine.Step(ctx, f.realm, session.ID, StepInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
}

func TestStepOTPChallenge(t *testing.T) {
	f := newFixture(t)
	key, err := auth.GenerateTOTPSecret("FerrisKey", "alice")
	require.NoError(t, err)
	f.createUser(t, "alice", "pw", func(u *models.User) {
		u.TOTPSecret = key.Secret()
	})
	ctx := context.Background()

	session, err := f.machine.Begin(f.realm, FlowContext{})
	require.NoError(t, err)

	outcome, err := f.machine.Step(ctx, f.realm, session.ID, StepInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, StatusRequiresOTP, outcome.Status)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	outcome, err = f.machine.Step(ctx, f.realm, session.ID, StepInput{OTP: code})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	require.NotNil(t, outcome.User)
}

func TestStepOTPBoundedAttempts(t *testing.T) {
	f := newFixture(t)
	key, err := auth.GenerateTOTPSecret("FerrisKey", "alice")
	require.NoError(t, err)
	f.createUser(t, "alice", "pw", func(u *models.User) {
		u.TOTPSecret = key.Secret()
	})
	ctx := context.Background()

	session, err := f.machine.Begin(f.realm, FlowContext{})
	require.NoError(t, err)

	outcome, err := f.machine.Step(ctx, f.realm, session.ID, StepInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, StatusRequiresOTP, outcome.Status)

	// Two wrong codes keep the challenge open
	for i := 0; i < 2; i++ {
		outcome, err = f.machine.Step(ctx, f.realm, session.ID, StepInput{OTP: "000000"})
		require.NoError(t, err)
		assert.Equal(t, StatusRequiresOTP, outcome.Status)
	}

	// Third wrong code exhausts the bound
	outcome, err = f.machine.Step(ctx, f.realm, session.ID, StepInput{OTP: "000000"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)

	_, err = f.machine.Step(ctx, f.realm, session.ID, StepInput{OTP: "000000"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStepLockoutAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "pw", nil)
	f.realm.MaxLoginFailures = 2
	require.NoError(t, f.store.UpdateRealm(f.realm))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		session, err := f.machine.Begin(f.realm, FlowContext{})
		require.NoError(t, err)
		outcome, err := f.machine.Step(ctx, f.realm, session.ID, StepInput{Username: "alice", Password: "wrong"})
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, outcome.Status)
	}

	session, err := f.machine.Begin(f.realm, FlowContext{})
	require.NoError(t, err)
	_, err = f.machine.Step(ctx, f.realm, session.ID, StepInput{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrLockedOut)
}

func TestRunDirect(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "pw", nil)
	ctx := context.Background()

	outcome, err := f.machine.RunDirect(ctx, f.realm, StepInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
}

func TestRunDirectWithOTPInline(t *testing.T) {
	f := newFixture(t)
	key, err := auth.GenerateTOTPSecret("FerrisKey", "alice")
	require.NoError(t, err)
	user := f.createUser(t, "alice", "pw", func(u *models.User) {
		u.TOTPSecret = key.Secret()
	})
	ctx := context.Background()

	// Without the OTP, the direct grant must not silently succeed
	outcome, err := f.machine.RunDirect(ctx, f.realm, StepInput{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, StatusRequiresOTP, outcome.Status)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)
	outcome, err = f.machine.RunDirect(ctx, f.realm, StepInput{Username: "alice", Password: "pw", OTP: code})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, user.ID, outcome.User.ID)
}

func TestRunDirectOTPFailuresCountTowardLockout(t *testing.T) {
	f := newFixture(t)
	key, err := auth.GenerateTOTPSecret("FerrisKey", "alice")
	require.NoError(t, err)
	f.createUser(t, "alice", "pw", func(u *models.User) {
		u.TOTPSecret = key.Secret()
	})
	f.realm.MaxLoginFailures = 3
	require.NoError(t, f.store.UpdateRealm(f.realm))
	ctx := context.Background()

	// Each request is a fresh ephemeral session, but wrong codes still
	// accumulate in the shared failure counter
	for i := 0; i < 3; i++ {
		outcome, err := f.machine.RunDirect(ctx, f.realm, StepInput{
			Username: "alice", Password: "pw", OTP: "000000",
		})
		require.NoError(t, err)
		assert.Equal(t, StatusRequiresOTP, outcome.Status)
	}

	_, err = f.machine.RunDirect(ctx, f.realm, StepInput{
		Username: "alice", Password: "pw", OTP: "000000",
	})
	assert.ErrorIs(t, err, ErrLockedOut)
}

func TestLockoutClearedOnlyOnFullLogin(t *testing.T) {
	f := newFixture(t)
	key, err := auth.GenerateTOTPSecret("FerrisKey", "alice")
	require.NoError(t, err)
	f.createUser(t, "alice", "pw", func(u *models.User) {
		u.TOTPSecret = key.Secret()
	})
	f.realm.MaxLoginFailures = 3
	require.NoError(t, f.store.UpdateRealm(f.realm))
	ctx := context.Background()

	// Two wrong codes: a correct password alone must not reset the counter
	for i := 0; i < 2; i++ {
		_, err := f.machine.RunDirect(ctx, f.realm, StepInput{
			Username: "alice", Password: "pw", OTP: "000000",
		})
		require.NoError(t, err)
	}

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)
	outcome, err := f.machine.RunDirect(ctx, f.realm, StepInput{
		Username: "alice", Password: "pw", OTP: code,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)

	// Full success resets the window: two more wrong codes stay unlocked
	for i := 0; i < 2; i++ {
		outcome, err := f.machine.RunDirect(ctx, f.realm, StepInput{
			Username: "alice", Password: "pw", OTP: "000000",
		})
		require.NoError(t, err)
		assert.Equal(t, StatusRequiresOTP, outcome.Status)
	}
}

func TestStepSessionScopedToRealm(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alice", "pw", nil)

	other := &models.Realm{Name: "other", Enabled: true, MaxLoginFailures: 5, LockoutSeconds: 900}
	require.NoError(t, f.store.CreateRealm(other))

	session, err := f.machine.Begin(f.realm, FlowContext{})
	require.NoError(t, err)

	_, err = f.machine.Step(context.Background(), other, session.ID, StepInput{Username: "alice", Password: "pw"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
