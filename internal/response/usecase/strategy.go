package usecase

import (
	"strings"

	"mailpilot-backend/internal/response/domain"
)

// MatchRules returns the rules triggered by the message, preserving the
// store's priority-then-success-rate ordering.
func MatchRules(rules []*domain.ResponseRule, msg *domain.IncomingMessage) []*domain.ResponseRule {
	subject := strings.ToLower(msg.Subject)
	text := subject + " " + strings.ToLower(msg.Body)

	var matched []*domain.ResponseRule
	for _, rule := range rules {
		if ruleMatches(rule, subject, text) {
			matched = append(matched, rule)
		}
	}
	return matched
}

func ruleMatches(rule *domain.ResponseRule, subject, text string) bool {
	for _, kw := range rule.Keywords() {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, pattern := range rule.Subjects() {
		if strings.Contains(subject, pattern) {
			return true
		}
	}
	return false
}

// SelectStrategy picks the generation strategy, first match wins.
// Proven deterministic rules beat probabilistic generation; the static
// template is the floor when no personalization signal exists.
func SelectStrategy(override domain.GenerationStrategy, matched []*domain.ResponseRule, profile *domain.StyleProfile) domain.GenerationStrategy {
	if override != "" {
		return override
	}

	if len(matched) > 0 && matched[0].SuccessRate > 0.8 {
		return domain.StrategyRuleBased
	}

	if profile != nil && profile.Confidence > 0.7 {
		return domain.StrategyRetrieval
	}

	if len(matched) > 0 && profile != nil {
		return domain.StrategyHybrid
	}

	return domain.StrategyTemplateFallback
}
