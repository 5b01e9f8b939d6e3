package ai

import "fmt"

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama" or "auto"

	// Gemini config
	GeminiAPIKey string
	GeminiModel  string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"
}

// NewReplyGenerator creates a ReplyGenerator based on the config.
// This is the factory function - switch AI provider by changing config.Provider
func NewReplyGenerator(cfg Config) (ReplyGenerator, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel), nil

	case ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	default:
		// Auto: prefer Gemini with Ollama as the local fallback when
		// both are configured.
		if cfg.GeminiAPIKey != "" {
			gemini := NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel)
			ollama := NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)
			return NewFallbackService(gemini, ollama), nil
		}
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	}
}
