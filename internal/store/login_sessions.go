package store

import (
	"time"

	"github.com/JunaYa/ferriskey/internal/models"
)

// Login session operations. A session row is the persisted state of one
// login attempt; handlers reload it on every step.

func (s *Store) CreateLoginSession(session *models.LoginSession) error {
	return s.db.Create(session).Error
}

func (s *Store) GetLoginSession(id string) (*models.LoginSession, error) {
	var session models.LoginSession
	if err := s.db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &session, nil
}

func (s *Store) UpdateLoginSession(session *models.LoginSession) error {
	return s.db.Save(session).Error
}

func (s *Store) DeleteLoginSession(id string) error {
	return s.db.Where("id = ?", id).Delete(&models.LoginSession{}).Error
}

func (s *Store) DeleteExpiredLoginSessions() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.LoginSession{}).Error
}
