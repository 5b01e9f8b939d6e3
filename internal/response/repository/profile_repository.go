package repository

import (
	"mailpilot-backend/internal/response/domain"

	"gorm.io/gorm"
)

// StyleProfileRepository exposes the read-only style signals the
// analyzer writes. A missing profile returns nil, not an error.
type StyleProfileRepository interface {
	GetByUserID(userID string) (*domain.StyleProfile, error)
}

type styleProfileRepository struct {
	db *gorm.DB
}

// NewStyleProfileRepository creates a new instance of styleProfileRepository
func NewStyleProfileRepository(db *gorm.DB) StyleProfileRepository {
	return &styleProfileRepository{db: db}
}

func (r *styleProfileRepository) GetByUserID(userID string) (*domain.StyleProfile, error) {
	var profile domain.StyleProfile
	err := r.db.Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
