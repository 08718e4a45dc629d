package bootstrap

import (
	"log"

	"github.com/JunaYa/ferriskey/internal/auth"
	"github.com/JunaYa/ferriskey/internal/config"
	"github.com/JunaYa/ferriskey/internal/store"
)

// initializeAuthProvider selects the credential verification backend.
func initializeAuthProvider(cfg *config.Config, db *store.Store) auth.Provider {
	var provider auth.Provider
	switch cfg.AuthMode {
	case config.AuthModeHTTPAPI:
		provider = auth.NewHTTPAPIAuthProvider(cfg, db)
	default:
		provider = auth.NewLocalAuthProvider(db, int(cfg.CredentialWorkers))
	}
	log.Printf("[Bootstrap] authentication provider: %s", provider.Name())
	return provider
}
