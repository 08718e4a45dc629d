package store

import (
	"github.com/JunaYa/ferriskey/internal/models"
)

// Signing key operations. Each realm has at most one active key; retired
// keys stay in the table so published JWKS can keep verifying older tokens.

func (s *Store) CreateSigningKey(key *models.SigningKey) error {
	return s.db.Create(key).Error
}

func (s *Store) GetActiveSigningKey(realmID uint) (*models.SigningKey, error) {
	var key models.SigningKey
	err := s.db.Where("realm_id = ? AND active = ?", realmID, true).
		Order("created_at DESC").
		First(&key).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &key, nil
}

func (s *Store) ListSigningKeys(realmID uint) ([]models.SigningKey, error) {
	var keys []models.SigningKey
	err := s.db.Where("realm_id = ?", realmID).
		Order("created_at DESC").
		Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// DeactivateSigningKeys retires all active keys for a realm, ahead of
// inserting a replacement.
func (s *Store) DeactivateSigningKeys(realmID uint) error {
	return s.db.Model(&models.SigningKey{}).
		Where("realm_id = ? AND active = ?", realmID, true).
		Update("active", false).Error
}
