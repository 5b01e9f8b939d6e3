package repository

import (
	"mailpilot-backend/internal/response/domain"

	"gorm.io/gorm"
)

// MessageRepository defines persistence for incoming messages.
type MessageRepository interface {
	// Save persists the message if it is new. Replaying the same
	// message ID is a no-op.
	Save(message *domain.IncomingMessage) error
	GetByID(id string) (*domain.IncomingMessage, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Save(message *domain.IncomingMessage) error {
	return r.db.Where("id = ?", message.ID).FirstOrCreate(message).Error
}

func (r *messageRepository) GetByID(id string) (*domain.IncomingMessage, error) {
	var message domain.IncomingMessage
	err := r.db.Where("id = ?", id).First(&message).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}
