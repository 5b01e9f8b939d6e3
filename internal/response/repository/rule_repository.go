package repository

import (
	"mailpilot-backend/internal/response/domain"

	"gorm.io/gorm"
)

// RuleRepository defines read access to response rules.
type RuleRepository interface {
	// FindActiveByUser returns active rules ranked by configured
	// priority, then by observed success rate.
	FindActiveByUser(userID string) ([]*domain.ResponseRule, error)
}

type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new instance of ruleRepository
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) FindActiveByUser(userID string) ([]*domain.ResponseRule, error) {
	var rules []*domain.ResponseRule
	err := r.db.
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("priority ASC, success_rate DESC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
