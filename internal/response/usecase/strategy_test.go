package usecase

import (
	"testing"

	"mailpilot-backend/internal/response/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRules(t *testing.T) {
	rules := []*domain.ResponseRule{
		{ID: "r1", Name: "Meeting Request", TriggerKeywords: "schedule a call, meeting"},
		{ID: "r2", Name: "Invoices", SubjectPatterns: "invoice"},
		{ID: "r3", Name: "Unrelated", TriggerKeywords: "vacation"},
	}

	msg := &domain.IncomingMessage{
		Subject: "Invoice for March",
		Body:    "Can we schedule a call to discuss?",
	}

	matched := MatchRules(rules, msg)
	require.Len(t, matched, 2)
	assert.Equal(t, "r1", matched[0].ID)
	assert.Equal(t, "r2", matched[1].ID)
}

func TestSelectStrategyRuleBasedWins(t *testing.T) {
	matched := []*domain.ResponseRule{{SuccessRate: 0.9}}
	profile := &domain.StyleProfile{Confidence: 0.9}

	got := SelectStrategy("", matched, profile)
	assert.Equal(t, domain.StrategyRuleBased, got)
}

func TestSelectStrategyRetrievalOnStrongProfile(t *testing.T) {
	matched := []*domain.ResponseRule{{SuccessRate: 0.5}}
	profile := &domain.StyleProfile{Confidence: 0.8}

	got := SelectStrategy("", matched, profile)
	assert.Equal(t, domain.StrategyRetrieval, got)
}

func TestSelectStrategyHybridNeedsBothSignals(t *testing.T) {
	matched := []*domain.ResponseRule{{SuccessRate: 0.5}}
	profile := &domain.StyleProfile{Confidence: 0.4}

	got := SelectStrategy("", matched, profile)
	assert.Equal(t, domain.StrategyHybrid, got)
}

func TestSelectStrategyFallbackWithoutSignals(t *testing.T) {
	// Weak profile and no rules: no personalization signal at all.
	profile := &domain.StyleProfile{Confidence: 0.4}

	assert.Equal(t, domain.StrategyTemplateFallback, SelectStrategy("", nil, profile))
	assert.Equal(t, domain.StrategyTemplateFallback, SelectStrategy("", nil, nil))
}

func TestSelectStrategyHonorsOverride(t *testing.T) {
	got := SelectStrategy(domain.StrategyTemplateFallback, []*domain.ResponseRule{{SuccessRate: 0.95}}, nil)
	assert.Equal(t, domain.StrategyTemplateFallback, got)
}
