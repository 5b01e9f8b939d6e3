package repository

import (
	"time"

	"mailpilot-backend/internal/response/domain"

	"gorm.io/gorm"
)

// SyncStateRepository tracks the per-user ingest watermark.
type SyncStateRepository interface {
	Get(userID string) (*domain.SyncState, error)
	Advance(userID string, lastSeen time.Time) error
}

type syncStateRepository struct {
	db *gorm.DB
}

// NewSyncStateRepository creates a new instance of syncStateRepository
func NewSyncStateRepository(db *gorm.DB) SyncStateRepository {
	return &syncStateRepository{db: db}
}

func (r *syncStateRepository) Get(userID string) (*domain.SyncState, error) {
	var state domain.SyncState
	err := r.db.Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *syncStateRepository) Advance(userID string, lastSeen time.Time) error {
	var state domain.SyncState
	err := r.db.Where("user_id = ?", userID).First(&state).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(&domain.SyncState{UserID: userID, LastSeenAt: lastSeen}).Error
	} else if err != nil {
		return err
	}
	if lastSeen.After(state.LastSeenAt) {
		state.LastSeenAt = lastSeen
		return r.db.Save(&state).Error
	}
	return nil
}
