package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	// Chroma Cloud
	ChromaAPIKey   string
	ChromaTenant   string
	ChromaDatabase string

	// AI providers
	AIProvider    string
	GeminiAPIKey  string
	GeminiModel   string
	OllamaBaseURL string
	OllamaModel   string

	// Gmail transport
	GoogleClientID     string
	GoogleClientSecret string
	GmailAccessToken   string
	GmailRefreshToken  string

	// IMAP ingestion
	IMAPServer   string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string

	// Push notifications
	FirebaseCredentials string

	// Pipeline tuning
	IngestInterval  time.Duration
	SweepInterval   time.Duration
	SummaryInterval time.Duration
	WorkerCount     int
	RetrievalBudget int
	RetrievalTopK   int
	ProviderTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		ChromaAPIKey:   getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:   getEnv("CHROMA_TENANT", ""),
		ChromaDatabase: getEnv("CHROMA_DATABASE", ""),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GmailAccessToken:   getEnv("GMAIL_ACCESS_TOKEN", ""),
		GmailRefreshToken:  getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPServer:   getEnv("IMAP_SERVER", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPUsername: getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS_FILE", ""),

		IngestInterval:  getEnvDuration("INGEST_INTERVAL", 60*time.Second),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", 120*time.Second),
		SummaryInterval: getEnvDuration("SUMMARY_INTERVAL", 24*time.Hour),
		WorkerCount:     getEnvInt("WORKER_COUNT", 4),
		RetrievalBudget: getEnvInt("RETRIEVAL_BUDGET", 2000),
		RetrievalTopK:   getEnvInt("RETRIEVAL_TOP_K", 10),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
