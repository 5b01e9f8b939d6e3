package domain

import (
	"strings"
	"time"
)

// AutomationPolicy holds a user's auto-send configuration. A missing
// policy is a valid state and is treated as auto-send disabled.
type AutomationPolicy struct {
	UserID                          string `json:"user_id" gorm:"primaryKey"`
	AutoSendEnabled                 bool   `json:"auto_send_enabled"`
	ConfidenceThreshold             int    `json:"confidence_threshold"` // 0-100
	DailyLimit                      int    `json:"daily_limit"`
	RequireConfirmationForImportant bool   `json:"require_confirmation_for_important"`
	MinDwellMinutes                 int    `json:"min_dwell_minutes"`
	// WorkingDays is a comma-separated list of lowercase weekday names.
	// Empty means every day.
	WorkingDays string `json:"working_days"`
	// WorkingHoursStart/End are "HH:MM". Both empty means no restriction.
	// Start > End is an overnight window that wraps past midnight.
	WorkingHoursStart string `json:"working_hours_start"`
	WorkingHoursEnd   string `json:"working_hours_end"`
	// SummaryEmailAddress receives the daily activity digest when set.
	SummaryEmailAddress string    `json:"summary_email_address"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (AutomationPolicy) TableName() string {
	return "automation_policies"
}

// DefaultPolicy is applied when a user has no stored policy.
// Auto-send stays disabled so a missing row can never cause a send.
func DefaultPolicy(userID string) *AutomationPolicy {
	return &AutomationPolicy{
		UserID:                          userID,
		AutoSendEnabled:                 false,
		ConfidenceThreshold:             70,
		DailyLimit:                      50,
		RequireConfirmationForImportant: true,
		MinDwellMinutes:                 5,
	}
}

// WithinBusinessHours reports whether now falls on a configured working
// day and inside the working-hours window, wrapping past midnight when
// the window is overnight.
func (p *AutomationPolicy) WithinBusinessHours(now time.Time) bool {
	if p.WorkingDays != "" {
		today := strings.ToLower(now.Weekday().String())
		found := false
		for _, day := range strings.Split(p.WorkingDays, ",") {
			if strings.TrimSpace(strings.ToLower(day)) == today {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if p.WorkingHoursStart == "" || p.WorkingHoursEnd == "" {
		return true
	}
	start, err := time.Parse("15:04", p.WorkingHoursStart)
	if err != nil {
		return true
	}
	end, err := time.Parse("15:04", p.WorkingHoursEnd)
	if err != nil {
		return true
	}

	minutes := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	if startMin <= endMin {
		return minutes >= startMin && minutes <= endMin
	}
	// Overnight window, e.g. 22:00-06:00
	return minutes >= startMin || minutes <= endMin
}
