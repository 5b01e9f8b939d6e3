package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Rule categories used by hybrid generation to decide where the rule
// template fragment is attached.
const (
	RuleCategoryClosing   = "closing"
	RuleCategoryAutoReply = "auto_reply"
	RuleCategorySignature = "signature"
	RuleCategoryGeneral   = "general"
)

// ResponseRule is a deterministic reply template triggered by keyword
// or subject matches. Lower priority values rank first.
type ResponseRule struct {
	ID       string `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"index;not null"`
	Name     string `json:"name" gorm:"not null"`
	Category string `json:"category"`
	Priority int    `json:"priority" gorm:"default:100"`
	// SuccessRate is the observed fraction of rule replies that were
	// accepted without edits.
	SuccessRate float64 `json:"success_rate"`
	// TriggerKeywords is a comma-separated keyword list matched against
	// subject + body.
	TriggerKeywords string `json:"trigger_keywords" gorm:"type:text"`
	// SubjectPatterns is a comma-separated list of substrings matched
	// against the subject only.
	SubjectPatterns  string    `json:"subject_patterns" gorm:"type:text"`
	ResponseTemplate string    `json:"response_template" gorm:"type:text;not null"`
	Variables        string    `json:"variables" gorm:"type:text"` // JSON object of extra template variables
	IsActive         bool      `json:"is_active" gorm:"default:true"`
	UsageCount       int       `json:"usage_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ResponseRule) TableName() string {
	return "response_rules"
}

// Keywords returns the trimmed, lowercased trigger keywords.
func (r *ResponseRule) Keywords() []string {
	return splitList(r.TriggerKeywords)
}

// Subjects returns the trimmed, lowercased subject patterns.
func (r *ResponseRule) Subjects() []string {
	return splitList(r.SubjectPatterns)
}

// VariableMap decodes the rule-specific template variables.
// Malformed JSON yields an empty map rather than an error.
func (r *ResponseRule) VariableMap() map[string]string {
	vars := map[string]string{}
	if r.Variables == "" {
		return vars
	}
	if err := json.Unmarshal([]byte(r.Variables), &vars); err != nil {
		return map[string]string{}
	}
	return vars
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
