package store

import (
	"errors"
	"log"

	"github.com/JunaYa/ferriskey/internal/models"
	"github.com/JunaYa/ferriskey/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&models.Realm{},
		&models.Client{},
		&models.User{},
		&models.AuthorizationCode{},
		&models.RefreshToken{},
		&models.SigningKey{},
		&models.LoginSession{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// RealmDefaults are the configured settings applied to newly created realms.
type RealmDefaults struct {
	SigningAlgorithm       string
	CodeTTL                int
	AccessTokenTTL         int
	RefreshTokenTTL        int
	RefreshRotationEnabled bool
	RefreshTokenFormat     string
	MaxLoginFailures       int
	LockoutSeconds         int
}

// SeedMasterRealm ensures the master realm and its admin user exist. The
// admin password is taken from config when set, otherwise generated and
// printed once at startup.
func (s *Store) SeedMasterRealm(realmName, adminPassword string, defaults RealmDefaults) error {
	realm, err := s.GetRealmByName(realmName)
	if err == nil {
		_ = realm // realm exists, nothing to seed
		return nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return err
	}

	realm = &models.Realm{
		Name:                   realmName,
		Enabled:                true,
		SigningAlgorithm:       defaults.SigningAlgorithm,
		CodeTTL:                defaults.CodeTTL,
		AccessTokenTTL:         defaults.AccessTokenTTL,
		RefreshTokenTTL:        defaults.RefreshTokenTTL,
		RefreshRotationEnabled: defaults.RefreshRotationEnabled,
		RefreshTokenFormat:     defaults.RefreshTokenFormat,
		MaxLoginFailures:       defaults.MaxLoginFailures,
		LockoutSeconds:         defaults.LockoutSeconds,
	}
	if err := s.db.Create(realm).Error; err != nil {
		return err
	}

	generated := false
	if adminPassword == "" {
		pw, err := util.CryptoRandomString(16)
		if err != nil {
			return err
		}
		adminPassword = pw
		generated = true
	}

	admin := &models.User{
		ID:       uuid.New().String(),
		RealmID:  realm.ID,
		Username: "admin",
		Email:    "admin@localhost",
		Enabled:  true,
	}
	if err := admin.SetPassword(adminPassword); err != nil {
		return err
	}
	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	if generated {
		log.Printf("[Store] Created realm %q with admin user: admin / %s", realmName, adminPassword)
	} else {
		log.Printf("[Store] Created realm %q with admin user", realmName)
	}
	return nil
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB returns the underlying GORM database connection (for transactions)
func (s *Store) DB() *gorm.DB {
	return s.db
}
