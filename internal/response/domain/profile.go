package domain

import (
	"strings"
	"time"
)

// StyleProfile is a read-only writing-style signal derived elsewhere.
// Absence is a valid state, not an error.
type StyleProfile struct {
	UserID         string  `json:"user_id" gorm:"primaryKey"`
	FormalityScore float64 `json:"formality_score"`
	// CommonPhrases and ClosingPatterns are newline-separated lists,
	// most frequent first.
	CommonPhrases   string    `json:"common_phrases" gorm:"type:text"`
	ClosingPatterns string    `json:"closing_patterns" gorm:"type:text"`
	Confidence      float64   `json:"confidence"`
	EmailsAnalyzed  int       `json:"emails_analyzed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (StyleProfile) TableName() string {
	return "style_profiles"
}

// Phrases returns the learned common phrases, most frequent first.
func (p *StyleProfile) Phrases() []string {
	return splitLines(p.CommonPhrases)
}

// Closings returns the learned closing patterns, most frequent first.
func (p *StyleProfile) Closings() []string {
	return splitLines(p.ClosingPatterns)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
