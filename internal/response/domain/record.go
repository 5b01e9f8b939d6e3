package domain

import "time"

// ResponseStatus tracks a record through the dispatch state machine.
// Statuses only move forward; sent, send_failed and rejected are terminal.
type ResponseStatus string

const (
	StatusDraft                ResponseStatus = "draft"
	StatusPendingAutoSend      ResponseStatus = "pending_auto_send"
	StatusManualReviewRequired ResponseStatus = "manual_review_required"
	// StatusSending is a transient claim: the record holds a quota slot
	// while the transport call is in flight. It always resolves to
	// sent or send_failed.
	StatusSending    ResponseStatus = "sending"
	StatusSent       ResponseStatus = "sent"
	StatusSendFailed ResponseStatus = "send_failed"
	StatusRejected   ResponseStatus = "rejected"
)

// Terminal reports whether the status can never change again.
func (s ResponseStatus) Terminal() bool {
	return s == StatusSent || s == StatusSendFailed || s == StatusRejected
}

// SweepStatuses are the statuses the dispatch sweep re-evaluates.
func SweepStatuses() []ResponseStatus {
	return []ResponseStatus{StatusDraft, StatusPendingAutoSend}
}

// ApproveStatuses are the statuses a user may approve a record from.
func ApproveStatuses() []ResponseStatus {
	return []ResponseStatus{StatusPendingAutoSend, StatusManualReviewRequired}
}

// RejectStatuses are the statuses a user may reject a record from.
// A draft can be rejected too: rejection is a hard cancellation and
// must beat a later sweep promoting the draft.
func RejectStatuses() []ResponseStatus {
	return []ResponseStatus{StatusDraft, StatusPendingAutoSend, StatusManualReviewRequired}
}

// ResponseRecord is a generated reply owned by the pipeline.
// Created once per IncomingMessage (original_message_id is unique)
// and mutated only through dispatch gate transitions.
type ResponseRecord struct {
	ID                string             `json:"id" gorm:"primaryKey"`
	OriginalMessageID string             `json:"original_message_id" gorm:"uniqueIndex;not null"`
	UserID            string             `json:"user_id" gorm:"index;not null"`
	Text              string             `json:"text" gorm:"type:text"`
	Strategy          GenerationStrategy `json:"strategy"`
	Confidence        float64            `json:"confidence"`
	Relevance         float64            `json:"relevance"`
	StyleMatch        float64            `json:"style_match"`
	ModelUsed         string             `json:"model_used"`
	TokensUsed        int                `json:"tokens_used"`
	LatencyMs         int64              `json:"latency_ms"`
	ContextSources    string             `json:"context_sources" gorm:"type:text"`
	Status            ResponseStatus     `json:"status" gorm:"index;not null"`
	ReviewReason      string             `json:"review_reason,omitempty"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	SentMessageID     string             `json:"sent_message_id,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	SentAt            *time.Time         `json:"sent_at,omitempty"`
	RejectedAt        *time.Time         `json:"rejected_at,omitempty"`
}

// TableName specifies the table name for GORM
func (ResponseRecord) TableName() string {
	return "response_records"
}
