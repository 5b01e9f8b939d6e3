package repository

import (
	"mailpilot-backend/internal/response/domain"

	"gorm.io/gorm"
)

// PolicyRepository defines persistence for automation policies.
type PolicyRepository interface {
	// GetByUserID returns nil when the user has no policy; callers fall
	// back to domain.DefaultPolicy.
	GetByUserID(userID string) (*domain.AutomationPolicy, error)
	// GetOrCreate returns the user's policy, inserting the disabled
	// default first if none exists. ClaimForSend needs a row to lock.
	GetOrCreate(userID string) (*domain.AutomationPolicy, error)
	Upsert(policy *domain.AutomationPolicy) error
	// List returns every stored policy; policy presence is what opts a
	// user into the orchestrator's ticks.
	List() ([]*domain.AutomationPolicy, error)
}

type policyRepository struct {
	db *gorm.DB
}

// NewPolicyRepository creates a new instance of policyRepository
func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) GetByUserID(userID string) (*domain.AutomationPolicy, error) {
	var policy domain.AutomationPolicy
	err := r.db.Where("user_id = ?", userID).First(&policy).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &policy, nil
}

func (r *policyRepository) GetOrCreate(userID string) (*domain.AutomationPolicy, error) {
	policy := domain.DefaultPolicy(userID)
	err := r.db.Where("user_id = ?", userID).FirstOrCreate(policy).Error
	if err != nil {
		return nil, err
	}
	return policy, nil
}

func (r *policyRepository) Upsert(policy *domain.AutomationPolicy) error {
	var existing domain.AutomationPolicy
	err := r.db.Where("user_id = ?", policy.UserID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(policy).Error
	} else if err != nil {
		return err
	}
	policy.CreatedAt = existing.CreatedAt
	return r.db.Save(policy).Error
}

func (r *policyRepository) List() ([]*domain.AutomationPolicy, error) {
	var policies []*domain.AutomationPolicy
	if err := r.db.Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}
