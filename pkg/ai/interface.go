package ai

import (
	"context"
	"strings"
)

// ReplyRequest carries everything a provider needs to draft a reply:
// the incoming email, the packed retrieval context and the style hints
// derived from the user's writing profile.
type ReplyRequest struct {
	Subject     string
	Sender      string
	Body        string
	ContextText string
	StyleHints  string
	// Retrieval stats used for confidence scoring.
	ContextCount  int
	AvgSimilarity float64
}

// ReplyResult is a drafted reply with the provider's self-assessment.
type ReplyResult struct {
	Text       string
	Confidence float64
	ModelUsed  string
	TokensUsed int
}

// ReplyGenerator is the interface for reply-drafting providers.
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, req ReplyRequest) (*ReplyResult, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

// scoreConfidence estimates how trustworthy a drafted reply is from
// the retrieval context quality and the reply length.
func scoreConfidence(req ReplyRequest, text string) float64 {
	confidence := 0.5

	if req.ContextCount > 0 {
		confidence += req.AvgSimilarity * 0.3
		boost := float64(req.ContextCount) * 0.05
		if boost > 0.2 {
			boost = 0.2
		}
		confidence += boost
	}

	length := len(text)
	if length >= 50 && length <= 500 {
		confidence += 0.1
	} else if length < 20 {
		confidence -= 0.2
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}
	return confidence
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// buildReplyPrompt assembles the provider prompt shared by all
// implementations so switching providers never changes behavior.
func buildReplyPrompt(req ReplyRequest) string {
	var b strings.Builder
	b.WriteString("You are an AI email assistant helping to generate appropriate email responses.\n")
	b.WriteString("Use the following context from previous emails to inform your response.\n\n")

	b.WriteString("Context from previous emails:\n")
	if req.ContextText != "" {
		b.WriteString(req.ContextText)
	} else {
		b.WriteString("No relevant context found.")
	}
	b.WriteString("\n\n")

	b.WriteString("Current email to respond to:\n")
	b.WriteString("Subject: " + req.Subject + "\n")
	b.WriteString("From: " + req.Sender + "\n\n")
	b.WriteString(req.Body)
	b.WriteString("\n\n")

	b.WriteString("Writing style guidelines:\n")
	if req.StyleHints != "" {
		b.WriteString(req.StyleHints)
	} else {
		b.WriteString("Use a professional, clear communication style.")
	}
	b.WriteString("\n\n")

	b.WriteString("Generate a professional email response that:\n")
	b.WriteString("1. Addresses the main points in the current email\n")
	b.WriteString("2. Matches the user's writing style and tone\n")
	b.WriteString("3. Is contextually appropriate based on the email history\n")
	b.WriteString("4. Is concise and actionable\n\n")
	b.WriteString("Respond with the reply body only, no commentary.\n")

	return b.String()
}
