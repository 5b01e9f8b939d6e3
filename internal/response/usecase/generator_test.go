package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"mailpilot-backend/internal/response/domain"
	"mailpilot-backend/pkg/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	result *ai.ReplyResult
	err    error
}

func (s *stubProvider) GenerateReply(ctx context.Context, req ai.ReplyRequest) (*ai.ReplyResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func TestGenerateRuleBased(t *testing.T) {
	rule := &domain.ResponseRule{
		Name:             "Meeting Request",
		SuccessRate:      0.9,
		ResponseTemplate: "Hi {sender_name}, thanks for reaching out about {subject}. {note}",
		Variables:        `{"note":"I will confirm a time shortly."}`,
	}
	g := NewGenerator(nil, time.Second)

	got := g.Generate(context.Background(), testMessage(), domain.StrategyRuleBased, []*domain.ResponseRule{rule}, nil, &RetrievedContext{})

	assert.Equal(t, domain.StrategyRuleBased, got.Strategy)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, 0.9, got.Relevance)
	assert.Equal(t, "rule_template", got.ModelUsed)
	assert.Contains(t, got.Text, "Hi Alice")
	assert.Contains(t, got.Text, "Project status")
	assert.Contains(t, got.Text, "I will confirm a time shortly.")
}

func TestGenerateRetrievalUsesProvider(t *testing.T) {
	provider := &stubProvider{result: &ai.ReplyResult{
		Text:       "Here is the update you asked for.",
		Confidence: 0.82,
		ModelUsed:  "gemini-2.5-flash",
		TokensUsed: 7,
	}}
	g := NewGenerator(provider, time.Second)
	profile := &domain.StyleProfile{Confidence: 0.8}

	got := g.Generate(context.Background(), testMessage(), domain.StrategyRetrieval, nil, profile, &RetrievedContext{})

	assert.Equal(t, domain.StrategyRetrieval, got.Strategy)
	assert.Equal(t, 0.82, got.Confidence)
	assert.Equal(t, "gemini-2.5-flash", got.ModelUsed)
	assert.Equal(t, 0.9, got.StyleMatch)
}

func TestGenerateFallsBackOnProviderFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("provider timeout")}
	g := NewGenerator(provider, time.Second)

	got := g.Generate(context.Background(), testMessage(), domain.StrategyRetrieval, nil, nil, &RetrievedContext{})

	assert.Equal(t, domain.StrategyTemplateFallback, got.Strategy)
	assert.Equal(t, 0.3, got.Confidence)
	assert.Equal(t, "fallback", got.ModelUsed)
	assert.Contains(t, got.Text, "Project status")
}

func TestGenerateHybridAttachesRuleFragment(t *testing.T) {
	provider := &stubProvider{result: &ai.ReplyResult{
		Text:       "Here is the update.",
		Confidence: 0.6,
		ModelUsed:  "gemini-2.5-flash",
	}}
	g := NewGenerator(provider, time.Second)

	cases := []struct {
		category string
		check    func(t *testing.T, text string)
	}{
		{domain.RuleCategoryClosing, func(t *testing.T, text string) {
			assert.Equal(t, "Here is the update.\n\nBest,\nAlice", text)
		}},
		{domain.RuleCategoryAutoReply, func(t *testing.T, text string) {
			assert.Equal(t, "Best,\nAlice\n\nHere is the update.", text)
		}},
		{domain.RuleCategoryGeneral, func(t *testing.T, text string) {
			assert.Equal(t, "Here is the update.", text)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.category, func(t *testing.T) {
			rule := &domain.ResponseRule{Category: tc.category, ResponseTemplate: "Best,\nAlice"}
			got := g.Generate(context.Background(), testMessage(), domain.StrategyHybrid,
				[]*domain.ResponseRule{rule}, &domain.StyleProfile{}, &RetrievedContext{})
			tc.check(t, got.Text)
			assert.Equal(t, (0.6+0.8)/2, got.Confidence)
			assert.Equal(t, "hybrid_gemini-2.5-flash", got.ModelUsed)
		})
	}
}

func TestGenerateTemplateFallback(t *testing.T) {
	g := NewGenerator(nil, time.Second)
	msg := testMessage()
	msg.Subject = "Quick question"
	msg.Body = "I need some information and details about the service."

	got := g.Generate(context.Background(), msg, domain.StrategyTemplateFallback, nil, nil, &RetrievedContext{})

	assert.Equal(t, domain.StrategyTemplateFallback, got.Strategy)
	assert.Equal(t, 0.6, got.Confidence)
	assert.Equal(t, "template_engine", got.ModelUsed)
	assert.Contains(t, got.Text, "your inquiry")
}

func TestSelectTemplate(t *testing.T) {
	assert.Equal(t, fallbackTemplates["urgent"], selectTemplate("this is urgent, respond asap"))
	assert.Equal(t, fallbackTemplates["meeting_request"], selectTemplate("can we schedule a meeting"))
	assert.Equal(t, fallbackTemplates["generic"], selectTemplate("hello there"))
}

func TestExtractSenderName(t *testing.T) {
	assert.Equal(t, "Alice", extractSenderName("Alice <alice@example.com>"))
	assert.Equal(t, "Bob Smith", extractSenderName(`"Bob Smith" <bob@example.com>`))
	assert.Equal(t, "Jane Doe", extractSenderName("jane.doe@example.com"))
	assert.Equal(t, "there", extractSenderName(""))
}

func TestExtractEmailAddress(t *testing.T) {
	assert.Equal(t, "alice@example.com", extractEmailAddress("Alice <Alice@Example.com>"))
	assert.Equal(t, "bob@example.com", extractEmailAddress("bob@example.com"))
	assert.Equal(t, "", extractEmailAddress("no address here"))
}

func TestGenerateRecordsLatencyAndSources(t *testing.T) {
	g := NewGenerator(nil, time.Second)
	retrieved := &RetrievedContext{}
	retrieved.Fragments = append(retrieved.Fragments, fakeIndexResult("src-1"), fakeIndexResult("src-2"))

	got := g.Generate(context.Background(), testMessage(), domain.StrategyTemplateFallback, nil, nil, retrieved)

	require.Equal(t, []string{"src-1", "src-2"}, got.ContextSources)
	assert.GreaterOrEqual(t, got.LatencyMs, int64(0))
	assert.Equal(t, wordCount(got.Text), got.TokensUsed)
}
