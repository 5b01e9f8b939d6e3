package main

import (
	"log"

	api "mailpilot-backend/cmd/api"
	"mailpilot-backend/internal/notification"
	"mailpilot-backend/internal/response/domain"
	"mailpilot-backend/internal/response/repository"
	"mailpilot-backend/internal/response/usecase"
	"mailpilot-backend/pkg/ai"
	"mailpilot-backend/pkg/chroma"
	"mailpilot-backend/pkg/config"
	"mailpilot-backend/pkg/database"
	"mailpilot-backend/pkg/fcm"
	"mailpilot-backend/pkg/gmail"
	"mailpilot-backend/pkg/imap"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate database schemas
	if err := db.AutoMigrate(
		&domain.IncomingMessage{},
		&domain.ResponseRecord{},
		&domain.AutomationPolicy{},
		&domain.ResponseRule{},
		&domain.StyleProfile{},
		&domain.SyncState{},
		&domain.DeviceToken{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize repositories (dependency injection)
	recordRepo := repository.NewResponseRecordRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	profileRepo := repository.NewStyleProfileRepository(db)
	syncStateRepo := repository.NewSyncStateRepository(db)
	deviceTokenRepo := repository.NewDeviceTokenRepository(db)

	// Initialize Chroma client for semantic retrieval
	var index usecase.SemanticIndex
	if cfg.ChromaAPIKey != "" {
		chromaClient, err := chroma.NewChromaClient(chroma.Config{
			APIKey:       cfg.ChromaAPIKey,
			Tenant:       cfg.ChromaTenant,
			Database:     cfg.ChromaDatabase,
			GeminiAPIKey: cfg.GeminiAPIKey,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize Chroma client: %v. Retrieval will use empty context.", err)
		} else {
			index = chromaClient
		}
	} else {
		log.Println("Warning: CHROMA_API_KEY not set. Retrieval will use empty context.")
	}

	// Initialize the generation provider
	provider, err := ai.NewReplyGenerator(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	})
	if err != nil {
		log.Fatal("Failed to initialize AI provider:", err)
	}
	log.Printf("AI provider initialized: %s", cfg.AIProvider)

	// Initialize Gmail transport
	gmailService := gmail.NewService(
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		gmail.StaticTokenStore{
			AccessToken:  cfg.GmailAccessToken,
			RefreshToken: cfg.GmailRefreshToken,
		},
		nil,
	)

	// Initialize IMAP message source
	var source usecase.MessageSource
	if cfg.IMAPServer != "" {
		source = imap.NewSource(imap.StaticMailboxResolver(imap.Mailbox{
			Server:   cfg.IMAPServer,
			Port:     cfg.IMAPPort,
			Username: cfg.IMAPUsername,
			Password: cfg.IMAPPassword,
		}))
	} else {
		log.Println("Warning: IMAP_SERVER not set. Mailbox polling disabled; messages must be submitted via the API.")
	}

	// Initialize FCM client (optional, notifications are skipped without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredentials != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("Warning: Failed to initialize FCM client (push notifications disabled): %v", err)
			fcmClient = nil
		}
	}
	notifier := notification.NewService(fcmClient, deviceTokenRepo)

	// Assemble the pipeline
	retriever := usecase.NewContextRetriever(index, cfg.RetrievalBudget, cfg.RetrievalTopK, cfg.ProviderTimeout)
	generator := usecase.NewGenerator(provider, cfg.ProviderTimeout)
	adapter := usecase.NewStyleAdapter()
	gate := usecase.NewDispatchGate(nil)

	responseUsecase := usecase.NewResponseUsecase(
		recordRepo, messageRepo, policyRepo, ruleRepo, profileRepo,
		retriever, generator, adapter, gate,
		gmailService, notifier, index,
	)

	// Start the orchestrator
	orchestrator := usecase.NewOrchestrator(responseUsecase, policyRepo, messageRepo, syncStateRepo, source, index, usecase.OrchestratorConfig{
		IngestInterval:  cfg.IngestInterval,
		SweepInterval:   cfg.SweepInterval,
		SummaryInterval: cfg.SummaryInterval,
		WorkerCount:     cfg.WorkerCount,
	})
	orchestrator.Start()
	defer orchestrator.Stop()

	// Start the HTTP API
	handler := api.NewHandler(responseUsecase, policyRepo, deviceTokenRepo, cfg)
	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
