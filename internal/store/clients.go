package store

import (
	"github.com/JunaYa/ferriskey/internal/models"
)

// Client operations. All lookups are realm-scoped: a client_id only exists
// within its realm, and the same client_id may appear in different realms.

func (s *Store) CreateClient(client *models.Client) error {
	return s.db.Create(client).Error
}

func (s *Store) GetClient(realmID uint, clientID string) (*models.Client, error) {
	var client models.Client
	err := s.db.Where("realm_id = ? AND client_id = ?", realmID, clientID).
		First(&client).Error
	if err != nil {
		return nil, translateNotFound(err)
	}
	return &client, nil
}

func (s *Store) ListClients(realmID uint) ([]models.Client, error) {
	var clients []models.Client
	err := s.db.Where("realm_id = ?", realmID).
		Order("created_at DESC").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *Store) UpdateClient(client *models.Client) error {
	return s.db.Save(client).Error
}

func (s *Store) DeleteClient(realmID uint, clientID string) error {
	return s.db.Where("realm_id = ? AND client_id = ?", realmID, clientID).
		Delete(&models.Client{}).Error
}
