package store

import (
	"github.com/JunaYa/ferriskey/internal/models"
)

// User operations. Lookups by username are realm-scoped.

func (s *Store) CreateUser(user *models.User) error {
	return s.db.Create(user).Error
}

func (s *Store) GetUserByUsername(realmID uint, username string) (*models.User, error) {
	var user models.User
	err := s.db.Where("realm_id = ? AND username = ?", realmID, username).
		First(&user).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

func (s *Store) GetUserByID(realmID uint, id string) (*models.User, error) {
	var user models.User
	err := s.db.Where("realm_id = ? AND id = ?", realmID, id).
		First(&user).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &user, nil
}

func (s *Store) UpdateUser(user *models.User) error {
	return s.db.Save(user).Error
}

func (s *Store) DeleteUser(realmID uint, id string) error {
	return s.db.Where("realm_id = ? AND id = ?", realmID, id).
		Delete(&models.User{}).Error
}
