package store

import (
	"time"

	"github.com/JunaYa/ferriskey/internal/models"
)

// Refresh token operations. Tokens are stored by SHA-256 hash and linked
// into rotation families: every rotation keeps the FamilyID of the original
// grant, so replay of a rotated token can revoke the whole chain.

func (s *Store) CreateRefreshToken(token *models.RefreshToken) error {
	return s.db.Create(token).Error
}

func (s *Store) GetRefreshTokenByHash(tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := s.db.Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return &token, nil
}

// RotateRefreshToken flips an active token to rotated. The conditional
// update ensures only one concurrent refresh wins; the loser receives
// ErrRefreshTokenNotActive and must be treated as a replay.
func (s *Store) RotateRefreshToken(id uint) error {
	result := s.db.Model(&models.RefreshToken{}).
		Where("id = ? AND status = ?", id, models.RefreshStatusActive).
		Update("status", models.RefreshStatusRotated)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRefreshTokenNotActive
	}
	return nil
}

// RevokeRefreshTokenFamily revokes every token in a rotation family.
// Called when a rotated token is presented again (theft detection).
func (s *Store) RevokeRefreshTokenFamily(familyID string) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("family_id = ? AND status <> ?", familyID, models.RefreshStatusRevoked).
		Update("status", models.RefreshStatusRevoked).Error
}

// RevokeRefreshToken revokes a single token.
func (s *Store) RevokeRefreshToken(id uint) error {
	return s.db.Model(&models.RefreshToken{}).
		Where("id = ?", id).
		Update("status", models.RefreshStatusRevoked).Error
}

func (s *Store) DeleteExpiredRefreshTokens() error {
	return s.db.Where("expires_at < ?", time.Now()).
		Delete(&models.RefreshToken{}).Error
}
