package bootstrap

import (
	"fmt"
	"log"

	"github.com/JunaYa/ferriskey/internal/config"
	"github.com/JunaYa/ferriskey/internal/store"
)

// initializeDatabase opens the store, runs migrations, and seeds the master
// realm.
func initializeDatabase(cfg *config.Config) (*store.Store, error) {
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Printf("[Bootstrap] database ready (driver: %s)", cfg.DatabaseDriver)

	defaults := store.RealmDefaults{
		SigningAlgorithm:       cfg.DefaultSigningAlgorithm,
		CodeTTL:                int(cfg.CodeExpiration.Seconds()),
		AccessTokenTTL:         int(cfg.AccessTokenExpiration.Seconds()),
		RefreshTokenTTL:        int(cfg.RefreshTokenExpiration.Seconds()),
		RefreshRotationEnabled: cfg.RefreshRotationEnabled,
		RefreshTokenFormat:     cfg.RefreshTokenFormat,
		MaxLoginFailures:       cfg.MaxLoginFailures,
		LockoutSeconds:         int(cfg.LockoutDuration.Seconds()),
	}
	if err := db.SeedMasterRealm(cfg.MasterRealm, cfg.DefaultAdminPassword, defaults); err != nil {
		return nil, fmt.Errorf("failed to seed master realm: %w", err)
	}
	return db, nil
}
