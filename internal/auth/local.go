package auth

import (
	"context"
	"errors"

	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/store"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// dummyHash is compared against when the user does not exist, so the
// response time for unknown users matches the response time for wrong
// passwords. bcrypt hash of an unguessable throwaway value.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("ferriskey-dummy-credential"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// LocalAuthProvider verifies credentials against the realm's user table.
// A weighted semaphore bounds concurrent bcrypt comparisons so a burst of
// login attempts cannot saturate the CPU.
type LocalAuthProvider struct {
	store *store.Store
	sem   *semaphore.Weighted
}

// NewLocalAuthProvider creates a new local authentication provider.
// workers bounds concurrent password comparisons.
func NewLocalAuthProvider(s *store.Store, workers int) *LocalAuthProvider {
	if workers <= 0 {
		workers = 4
	}
	return &LocalAuthProvider{
		store: s,
		sem:   semaphore.NewWeighted(int64(workers)),
	}
}

// Authenticate verifies credentials against the realm's users.
func (p *LocalAuthProvider) Authenticate(
	ctx context.Context,
	realm *models.Realm,
	username, password string,
) (*models.User, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	user, err := p.store.GetUserByUsername(realm.ID, username)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			// Burn a comparison so unknown users take as long as wrong passwords
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash),
		[]byte(password),
	); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.Enabled {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Name returns provider name for logging
func (p *LocalAuthProvider) Name() string {
	return "local"
}
