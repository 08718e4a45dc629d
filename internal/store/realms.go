package store

import (
	"errors"
	"fmt"

	"github.com/JunaYa/ferriskey/internal/models"

	"gorm.io/gorm"
)

// translateNotFound maps GORM's sentinel to the store's own so callers never
// import gorm.
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// Realm operations

func (s *Store) CreateRealm(realm *models.Realm) error {
	return s.db.Create(realm).Error
}

func (s *Store) GetRealmByName(name string) (*models.Realm, error) {
	var realm models.Realm
	if err := s.db.Where("name = ?", name).First(&realm).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &realm, nil
}

func (s *Store) GetRealmByID(id uint) (*models.Realm, error) {
	var realm models.Realm
	if err := s.db.First(&realm, id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &realm, nil
}

func (s *Store) UpdateRealm(realm *models.Realm) error {
	return s.db.Save(realm).Error
}

func (s *Store) ListRealms() ([]models.Realm, error) {
	var realms []models.Realm
	if err := s.db.Order("name").Find(&realms).Error; err != nil {
		return nil, fmt.Errorf("failed to list realms: %w", err)
	}
	return realms, nil
}
