package usecase

import (
	"regexp"
	"strings"

	"mailpilot-backend/internal/response/domain"
)

// StyleAdapter reshapes a candidate toward the user's writing style and
// rescores its quality. Both steps are deterministic and local.
type StyleAdapter struct{}

func NewStyleAdapter() *StyleAdapter {
	return &StyleAdapter{}
}

// Adapt mutates the candidate in place: style transforms first, then
// quality metrics, then the confidence blend.
func (a *StyleAdapter) Adapt(candidate *CandidateResponse, profile *domain.StyleProfile, msg *domain.IncomingMessage) {
	if profile != nil {
		text := candidate.Text

		if profile.FormalityScore > 0.8 {
			text = makeMoreFormal(text)
		} else if profile.FormalityScore < 0.3 {
			text = makeMoreCasual(text)
		}

		text = incorporatePhrases(text, profile.Phrases())

		if closings := profile.Closings(); len(closings) > 0 {
			text = applyClosing(text, closings[0])
		}

		candidate.Text = text
		candidate.StyleMatch = clamp01(candidate.StyleMatch + 0.2)
	}

	metrics := scoreQuality(candidate.Text, msg)
	if candidate.QualityMetrics == nil {
		candidate.QualityMetrics = map[string]float64{}
	}
	for k, v := range metrics {
		candidate.QualityMetrics[k] = v
	}

	candidate.Confidence = clamp01((candidate.Confidence + metrics["overall_quality"]) / 2)
}

var formalReplacements = [][2]string{
	{"thanks", "thank you"},
	{"can't", "cannot"},
	{"won't", "will not"},
	{"don't", "do not"},
	{"i'll", "I will"},
	{"we'll", "we will"},
}

var casualReplacements = [][2]string{
	{"thank you very much", "thanks"},
	{"I would appreciate", "I'd appreciate"},
	{"I will", "I'll"},
	{"we will", "we'll"},
}

func makeMoreFormal(text string) string {
	for _, r := range formalReplacements {
		text = strings.ReplaceAll(text, r[0], r[1])
	}
	return text
}

func makeMoreCasual(text string) string {
	for _, r := range casualReplacements {
		text = strings.ReplaceAll(text, r[0], r[1])
	}
	return text
}

// incorporatePhrases swaps a generic thank-you for the user's own
// thank-you phrase when one is learned.
func incorporatePhrases(text string, phrases []string) string {
	if len(phrases) == 0 || !strings.Contains(strings.ToLower(text), "thank") {
		return text
	}
	for _, p := range phrases {
		if strings.Contains(strings.ToLower(p), "thank") {
			return strings.Replace(text, "Thank you", p, 1)
		}
	}
	return text
}

var genericClosings = []string{"Best regards", "Sincerely", "Thank you"}

// applyClosing replaces the first generic closing with the user's own,
// or appends it when no closing is present at all.
func applyClosing(text, closing string) string {
	for _, generic := range genericClosings {
		if strings.Contains(text, generic) {
			return strings.Replace(text, generic, closing, 1)
		}
	}
	lower := strings.ToLower(text)
	for _, word := range []string{"regards", "sincerely", "best"} {
		if strings.Contains(lower, word) {
			return text
		}
	}
	return text + "\n\n" + closing
}

var greetingTokens = []string{"thank", "hello", "hi", "dear"}
var closingTokens = []string{"regards", "sincerely", "best", "thanks"}
var informalTokens = []string{"lol", "omg", "wtf", "!!!!", "????"}
var politeTokens = []string{"please", "thank you", "appreciate", "sincerely", "regards"}

// scoreQuality computes the quality metrics and the blended overall
// score used to adjust confidence.
func scoreQuality(text string, msg *domain.IncomingMessage) map[string]float64 {
	metrics := map[string]float64{}
	lower := strings.ToLower(text)

	words := wordCount(text)
	metrics["word_count"] = float64(words)
	appropriateLength := 0.0
	if words >= 20 && words <= 200 {
		appropriateLength = 1.0
	}
	metrics["appropriate_length"] = appropriateLength

	original := extractKeywords(msg.Body)
	reply := extractKeywords(text)
	overlap := 0
	replySet := map[string]bool{}
	for _, w := range reply {
		replySet[w] = true
	}
	for _, w := range original {
		if replySet[w] {
			overlap++
		}
	}
	denominator := len(original)
	if denominator == 0 {
		denominator = 1
	}
	metrics["keyword_relevance"] = float64(overlap) / float64(denominator)

	metrics["professional_tone"] = professionalTone(lower)

	metrics["has_greeting"] = boolMetric(containsAny(lower, greetingTokens))
	metrics["has_closing"] = boolMetric(containsAny(lower, closingTokens))

	metrics["overall_quality"] = appropriateLength*0.2 +
		metrics["keyword_relevance"]*0.3 +
		metrics["professional_tone"]*0.3 +
		metrics["has_greeting"]*0.1 +
		metrics["has_closing"]*0.1

	return metrics
}

func professionalTone(lower string) float64 {
	for _, token := range informalTokens {
		if strings.Contains(lower, token) {
			return 0.3
		}
	}
	for _, token := range politeTokens {
		if strings.Contains(lower, token) {
			return 0.9
		}
	}
	return 0.7
}

var keywordRe = regexp.MustCompile(`\b\w{4,}\b`)

var stopWords = map[string]bool{
	"with": true, "that": true, "this": true, "have": true, "will": true,
	"from": true, "they": true, "been": true, "were": true, "said": true,
	"each": true, "which": true, "their": true, "time": true, "would": true,
	"about": true, "could": true, "there": true, "other": true, "after": true,
	"first": true, "never": true, "these": true, "should": true, "where": true,
	"being": true, "every": true, "great": true, "might": true, "shall": true,
	"still": true, "those": true, "while": true, "again": true, "before": true,
	"during": true, "always": true, "please": true, "thank": true,
	"email": true, "message": true,
}

func extractKeywords(text string) []string {
	words := keywordRe.FindAllString(strings.ToLower(text), -1)
	var keywords []string
	for _, w := range words {
		if !stopWords[w] {
			keywords = append(keywords, w)
			if len(keywords) == 10 {
				break
			}
		}
	}
	return keywords
}

func containsAny(text string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

func boolMetric(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func clamp01(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0.0 {
		return 0.0
	}
	return v
}
