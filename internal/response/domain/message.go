package domain

import "time"

// IncomingMessage is an inbound email the pipeline may answer.
// The ID doubles as the idempotency key: at most one ResponseRecord
// is ever created per message. Immutable once stored.
type IncomingMessage struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	ThreadID   string    `json:"thread_id" gorm:"index"`
	UserID     string    `json:"user_id" gorm:"index;not null"`
	Sender     string    `json:"sender" gorm:"not null"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body" gorm:"type:text"`
	ReceivedAt time.Time `json:"received_at" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (IncomingMessage) TableName() string {
	return "incoming_messages"
}
