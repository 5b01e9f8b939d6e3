package repository

import (
	"errors"
	"time"

	"mailpilot-backend/internal/response/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDailyLimitReached is returned by ClaimForSend when the user's
// daily auto-send quota is exhausted.
var ErrDailyLimitReached = errors.New("daily send limit reached")

// DailySummary aggregates a user's response activity for one day.
type DailySummary struct {
	Date          string  `json:"date"`
	Drafted       int64   `json:"drafted"`
	Pending       int64   `json:"pending"`
	ManualReview  int64   `json:"manual_review"`
	Sent          int64   `json:"sent"`
	SendFailed    int64   `json:"send_failed"`
	Rejected      int64   `json:"rejected"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// ResponseRecordRepository defines persistence for generated responses.
// Status changes go through conditional transitions so concurrent sweep
// passes and user actions can never both win the same transition.
type ResponseRecordRepository interface {
	// Create inserts a new record. The unique index on
	// original_message_id enforces the one-record-per-message invariant.
	Create(record *domain.ResponseRecord) error
	GetByID(id string) (*domain.ResponseRecord, error)
	GetByMessageID(messageID string) (*domain.ResponseRecord, error)
	// FindSweepable returns the user's draft and pending records in
	// creation order.
	FindSweepable(userID string) ([]*domain.ResponseRecord, error)
	// CountSentBetween counts records holding a quota slot (sent or
	// in-flight) with sent_at inside [from, to).
	CountSentBetween(userID string, from, to time.Time) (int64, error)
	// Transition applies updates only if the record's current status is
	// in from. Returns whether the transition was applied.
	Transition(id string, from []domain.ResponseStatus, updates map[string]interface{}) (bool, error)
	// ClaimForSend atomically checks the daily quota and flips the
	// record to sending. The user's policy row is locked for the
	// duration of the transaction, serialising quota checks per user.
	ClaimForSend(record *domain.ResponseRecord, dailyLimit int, from []domain.ResponseStatus, now time.Time) (bool, error)
	// FinalizeSent resolves a sending claim after a successful
	// transport call.
	FinalizeSent(id, sentMessageID string, sentAt time.Time) error
	// FinalizeSendFailed resolves a sending claim after a transport
	// failure. The quota slot is released.
	FinalizeSendFailed(id, errorMessage string) error
	SummarizeDay(userID string, from, to time.Time) (*DailySummary, error)
}

type responseRecordRepository struct {
	db *gorm.DB
}

// NewResponseRecordRepository creates a new instance of responseRecordRepository
func NewResponseRecordRepository(db *gorm.DB) ResponseRecordRepository {
	return &responseRecordRepository{db: db}
}

func (r *responseRecordRepository) Create(record *domain.ResponseRecord) error {
	return r.db.Create(record).Error
}

func (r *responseRecordRepository) GetByID(id string) (*domain.ResponseRecord, error) {
	var record domain.ResponseRecord
	err := r.db.Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *responseRecordRepository) GetByMessageID(messageID string) (*domain.ResponseRecord, error) {
	var record domain.ResponseRecord
	err := r.db.Where("original_message_id = ?", messageID).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *responseRecordRepository) FindSweepable(userID string) ([]*domain.ResponseRecord, error) {
	var records []*domain.ResponseRecord
	err := r.db.
		Where("user_id = ? AND status IN ?", userID, domain.SweepStatuses()).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *responseRecordRepository) CountSentBetween(userID string, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&domain.ResponseRecord{}).
		Where("user_id = ? AND status IN ? AND sent_at >= ? AND sent_at < ?",
			userID, []domain.ResponseStatus{domain.StatusSent, domain.StatusSending}, from, to).
		Count(&count).Error
	return count, err
}

func (r *responseRecordRepository) Transition(id string, from []domain.ResponseStatus, updates map[string]interface{}) (bool, error) {
	result := r.db.Model(&domain.ResponseRecord{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *responseRecordRepository) ClaimForSend(record *domain.ResponseRecord, dailyLimit int, from []domain.ResponseStatus, now time.Time) (bool, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	claimed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// The policy row is the per-user quota mutex.
		var policy domain.AutomationPolicy
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", record.UserID).
			First(&policy).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&domain.ResponseRecord{}).
			Where("user_id = ? AND status IN ? AND sent_at >= ? AND sent_at < ?",
				record.UserID, []domain.ResponseStatus{domain.StatusSent, domain.StatusSending}, dayStart, dayEnd).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(dailyLimit) {
			return ErrDailyLimitReached
		}

		result := tx.Model(&domain.ResponseRecord{}).
			Where("id = ? AND status IN ?", record.ID, from).
			Updates(map[string]interface{}{
				"status":  domain.StatusSending,
				"sent_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		claimed = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (r *responseRecordRepository) FinalizeSent(id, sentMessageID string, sentAt time.Time) error {
	return r.db.Model(&domain.ResponseRecord{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(map[string]interface{}{
			"status":          domain.StatusSent,
			"sent_message_id": sentMessageID,
			"sent_at":         sentAt,
		}).Error
}

func (r *responseRecordRepository) FinalizeSendFailed(id, errorMessage string) error {
	return r.db.Model(&domain.ResponseRecord{}).
		Where("id = ? AND status = ?", id, domain.StatusSending).
		Updates(map[string]interface{}{
			"status":        domain.StatusSendFailed,
			"error_message": errorMessage,
			"sent_at":       nil,
		}).Error
}

func (r *responseRecordRepository) SummarizeDay(userID string, from, to time.Time) (*DailySummary, error) {
	summary := &DailySummary{Date: from.Format("2006-01-02")}

	type statusCount struct {
		Status domain.ResponseStatus
		Count  int64
	}
	var counts []statusCount
	err := r.db.Model(&domain.ResponseRecord{}).
		Select("status, count(*) as count").
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, from, to).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		switch c.Status {
		case domain.StatusDraft:
			summary.Drafted = c.Count
		case domain.StatusPendingAutoSend:
			summary.Pending = c.Count
		case domain.StatusManualReviewRequired:
			summary.ManualReview = c.Count
		case domain.StatusSendFailed:
			summary.SendFailed = c.Count
		case domain.StatusRejected:
			summary.Rejected = c.Count
		}
	}

	// Sent counts go by sent_at, not created_at, so the quota view and
	// the summary agree.
	err = r.db.Model(&domain.ResponseRecord{}).
		Where("user_id = ? AND status = ? AND sent_at >= ? AND sent_at < ?",
			userID, domain.StatusSent, from, to).
		Count(&summary.Sent).Error
	if err != nil {
		return nil, err
	}

	var avg *float64
	err = r.db.Model(&domain.ResponseRecord{}).
		Select("avg(confidence)").
		Where("user_id = ? AND status = ? AND sent_at >= ? AND sent_at < ?",
			userID, domain.StatusSent, from, to).
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	if avg != nil {
		summary.AvgConfidence = *avg
	}
	return summary, nil
}
