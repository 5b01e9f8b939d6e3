package usecase

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"mailpilot-backend/internal/response/domain"
	"mailpilot-backend/pkg/ai"
)

// CandidateResponse is the ephemeral output of one generation pass.
// It becomes a ResponseRecord only after style adaptation and scoring.
type CandidateResponse struct {
	Text           string
	Strategy       domain.GenerationStrategy
	Confidence     float64
	Relevance      float64
	StyleMatch     float64
	QualityMetrics map[string]float64
	ContextSources []string
	ModelUsed      string
	TokensUsed     int
	LatencyMs      int64
}

// Generator produces a reply candidate per strategy. Provider failures
// are recovered locally by downgrading to the static template with a
// capped confidence, so generation itself never fails the pipeline.
type Generator struct {
	provider ai.ReplyGenerator
	timeout  time.Duration
}

func NewGenerator(provider ai.ReplyGenerator, timeout time.Duration) *Generator {
	return &Generator{provider: provider, timeout: timeout}
}

func (g *Generator) Generate(
	ctx context.Context,
	msg *domain.IncomingMessage,
	strategy domain.GenerationStrategy,
	matched []*domain.ResponseRule,
	profile *domain.StyleProfile,
	retrieved *RetrievedContext,
) *CandidateResponse {
	start := time.Now()

	var candidate *CandidateResponse
	switch strategy {
	case domain.StrategyRuleBased:
		candidate = g.generateRuleBased(msg, matched[0])
	case domain.StrategyRetrieval:
		candidate = g.generateRetrieval(ctx, msg, profile, retrieved)
	case domain.StrategyHybrid:
		candidate = g.generateHybrid(ctx, msg, matched[0], profile, retrieved)
	default:
		candidate = g.generateTemplate(msg)
	}

	candidate.ContextSources = retrieved.Sources()
	candidate.LatencyMs = time.Since(start).Milliseconds()
	return candidate
}

func (g *Generator) generateRuleBased(msg *domain.IncomingMessage, rule *domain.ResponseRule) *CandidateResponse {
	text := fillTemplate(rule.ResponseTemplate, msg, rule.VariableMap())
	return &CandidateResponse{
		Text:       text,
		Strategy:   domain.StrategyRuleBased,
		Confidence: rule.SuccessRate,
		Relevance:  0.9,
		StyleMatch: 0.7,
		ModelUsed:  "rule_template",
		TokensUsed: wordCount(text),
	}
}

func (g *Generator) generateRetrieval(ctx context.Context, msg *domain.IncomingMessage, profile *domain.StyleProfile, retrieved *RetrievedContext) *CandidateResponse {
	result, err := g.callProvider(ctx, msg, profile, retrieved)
	if err != nil {
		log.Printf("[Generator] Provider failed, downgrading to fallback: %v", err)
		return g.generateFallback(msg, err)
	}

	styleMatch := 0.5
	if profile != nil {
		styleMatch = 0.9
	}
	return &CandidateResponse{
		Text:       result.Text,
		Strategy:   domain.StrategyRetrieval,
		Confidence: result.Confidence,
		Relevance:  0.8,
		StyleMatch: styleMatch,
		ModelUsed:  result.ModelUsed,
		TokensUsed: result.TokensUsed,
	}
}

func (g *Generator) generateHybrid(ctx context.Context, msg *domain.IncomingMessage, rule *domain.ResponseRule, profile *domain.StyleProfile, retrieved *RetrievedContext) *CandidateResponse {
	result, err := g.callProvider(ctx, msg, profile, retrieved)
	if err != nil {
		log.Printf("[Generator] Provider failed, downgrading to fallback: %v", err)
		return g.generateFallback(msg, err)
	}

	text := attachRuleFragment(result.Text, rule, msg)

	styleMatch := 0.6
	if profile != nil {
		styleMatch = 0.9
	}
	return &CandidateResponse{
		Text:       text,
		Strategy:   domain.StrategyHybrid,
		Confidence: (result.Confidence + 0.8) / 2,
		Relevance:  0.85,
		StyleMatch: styleMatch,
		ModelUsed:  "hybrid_" + result.ModelUsed,
		TokensUsed: wordCount(text),
	}
}

func (g *Generator) generateTemplate(msg *domain.IncomingMessage) *CandidateResponse {
	template := selectTemplate(strings.ToLower(msg.Subject + " " + msg.Body))
	text := fillTemplate(template, msg, nil)
	return &CandidateResponse{
		Text:       text,
		Strategy:   domain.StrategyTemplateFallback,
		Confidence: 0.6,
		Relevance:  0.7,
		StyleMatch: 0.5,
		ModelUsed:  "template_engine",
		TokensUsed: wordCount(text),
	}
}

// generateFallback is the floor for provider failures: a safe
// acknowledgment with confidence forced low enough that the dispatch
// gate can never auto-send it under a sane threshold.
func (g *Generator) generateFallback(msg *domain.IncomingMessage, cause error) *CandidateResponse {
	subject := msg.Subject
	if subject == "" {
		subject = "your message"
	}
	text := fmt.Sprintf("Thank you for your email regarding '%s'. I have received your message and will get back to you soon.", subject)
	return &CandidateResponse{
		Text:           text,
		Strategy:       domain.StrategyTemplateFallback,
		Confidence:     0.3,
		Relevance:      0.5,
		StyleMatch:     0.4,
		QualityMetrics: map[string]float64{"generation_failed": 1},
		ModelUsed:      "fallback",
		TokensUsed:     wordCount(text),
	}
}

func (g *Generator) callProvider(ctx context.Context, msg *domain.IncomingMessage, profile *domain.StyleProfile, retrieved *RetrievedContext) (*ai.ReplyResult, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("no generation provider configured")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	return g.provider.GenerateReply(ctx, ai.ReplyRequest{
		Subject:       msg.Subject,
		Sender:        msg.Sender,
		Body:          msg.Body,
		ContextText:   retrieved.Text(),
		StyleHints:    styleHints(profile),
		ContextCount:  len(retrieved.Fragments),
		AvgSimilarity: retrieved.AvgSimilarity,
	})
}

func styleHints(profile *domain.StyleProfile) string {
	if profile == nil {
		return ""
	}
	var b strings.Builder
	switch {
	case profile.FormalityScore > 0.8:
		b.WriteString("Use a formal tone.\n")
	case profile.FormalityScore < 0.3:
		b.WriteString("Use a casual, friendly tone.\n")
	default:
		b.WriteString("Use a balanced professional tone.\n")
	}
	if phrases := profile.Phrases(); len(phrases) > 0 {
		b.WriteString("Phrases the user often writes: " + strings.Join(phrases, "; ") + "\n")
	}
	if closings := profile.Closings(); len(closings) > 0 {
		b.WriteString("Preferred closing: " + closings[0] + "\n")
	}
	return b.String()
}

// attachRuleFragment merges the matched rule's template into a provider
// reply according to the rule's category.
func attachRuleFragment(text string, rule *domain.ResponseRule, msg *domain.IncomingMessage) string {
	fragment := strings.TrimSpace(fillTemplate(rule.ResponseTemplate, msg, rule.VariableMap()))
	if fragment == "" {
		return text
	}
	switch rule.Category {
	case domain.RuleCategoryClosing, domain.RuleCategorySignature:
		return text + "\n\n" + fragment
	case domain.RuleCategoryAutoReply:
		return fragment + "\n\n" + text
	}
	return text
}

// Static template table used when no personalization signal exists.
var fallbackTemplates = map[string]string{
	"meeting_request":     "Thank you for your meeting request. I will check my calendar and get back to you with available times.",
	"information_request": "Thank you for your inquiry. I will gather the requested information and provide you with a comprehensive response.",
	"follow_up":           "Thank you for following up on this matter. I will prioritize this and get back to you soon.",
	"urgent":              "I understand this is urgent. I am reviewing your message now and will respond as quickly as possible.",
	"generic":             "Thank you for your email. I will review your message and get back to you shortly.",
}

var templateKeywords = map[string][]string{
	"meeting_request":     {"meeting", "call", "schedule", "appointment", "available"},
	"information_request": {"information", "details", "question", "inquiry", "clarification"},
	"follow_up":           {"follow", "following up", "checking", "status", "update"},
	"urgent":              {"urgent", "asap", "immediately", "emergency", "critical"},
}

func selectTemplate(emailText string) string {
	best := "generic"
	bestScore := 0
	for name, keywords := range templateKeywords {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(emailText, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	return fallbackTemplates[best]
}

// fillTemplate substitutes the standard variables plus any rule-specific
// extras into a template.
func fillTemplate(template string, msg *domain.IncomingMessage, extra map[string]string) string {
	subject := msg.Subject
	if subject == "" {
		subject = "your message"
	}
	vars := map[string]string{
		"sender_name": extractSenderName(msg.Sender),
		"subject":     subject,
		"date":        time.Now().Format("January 2, 2006"),
	}
	for k, v := range extra {
		vars[k] = v
	}

	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

var displayNameRe = regexp.MustCompile(`^([^<]+)<`)
var angleAddrRe = regexp.MustCompile(`<([^>]+)>`)

// extractSenderName pulls a usable name out of "Name <addr>" senders.
func extractSenderName(sender string) string {
	if sender == "" {
		return "there"
	}
	if m := displayNameRe.FindStringSubmatch(sender); m != nil {
		name := strings.Trim(strings.TrimSpace(m[1]), `"`)
		if name != "" {
			return name
		}
		return "there"
	}
	if at := strings.Index(sender, "@"); at > 0 {
		name := sender[:at]
		name = strings.NewReplacer(".", " ", "_", " ").Replace(name)
		return strings.Title(name)
	}
	return sender
}

// extractEmailAddress pulls a clean address out of "Name <addr>" senders.
func extractEmailAddress(sender string) string {
	if m := angleAddrRe.FindStringSubmatch(sender); m != nil {
		return strings.ToLower(strings.TrimSpace(m[1]))
	}
	if strings.Contains(sender, "@") {
		return strings.ToLower(strings.TrimSpace(sender))
	}
	return ""
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
