package auth

import (
	"context"

	"github.com/JunaYa/ferriskey/internal/models"
)

// Provider verifies a user's password within a realm and returns the
// matching user record. Implementations must return ErrInvalidCredentials
// for both unknown users and wrong passwords, with no observable
// difference between the two cases.
type Provider interface {
	Authenticate(ctx context.Context, realm *models.Realm, username, password string) (*models.User, error)

	// Name returns provider name for logging
	Name() string
}
