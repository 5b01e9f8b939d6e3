package domain

import "time"

// SyncState is the per-user ingest watermark. It only advances after
// every message fetched in a tick has been persisted, so a failed tick
// is retried in full on the next cadence.
type SyncState struct {
	UserID     string    `json:"user_id" gorm:"primaryKey"`
	LastSeenAt time.Time `json:"last_seen_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (SyncState) TableName() string {
	return "sync_states"
}
