package store

import (
	"time"

	"github.com/JunaYa/ferriskey/internal/models"
)

// Authorization code operations. Codes are stored by SHA-256 hash of the
// plaintext; the plaintext never touches the database.

func (s *Store) CreateAuthorizationCode(code *models.AuthorizationCode) error {
	return s.db.Create(code).Error
}

func (s *Store) GetAuthorizationCodeByHash(codeHash string) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	if err := s.db.Where("code_hash = ?", codeHash).First(&code).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &code, nil
}

// ConsumeAuthorizationCode marks a code as used. The conditional update
// (WHERE used_at IS NULL) ensures exactly one concurrent exchange wins; the
// loser receives ErrCodeAlreadyUsed.
func (s *Store) ConsumeAuthorizationCode(id uint) error {
	now := time.Now()
	result := s.db.Model(&models.AuthorizationCode{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCodeAlreadyUsed
	}
	return nil
}

func (s *Store) DeleteExpiredAuthorizationCodes() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.AuthorizationCode{}).Error
}
