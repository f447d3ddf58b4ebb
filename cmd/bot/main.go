package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/aurashield/mentions-bot/internal/alerts"
	"github.com/aurashield/mentions-bot/internal/archive"
	"github.com/aurashield/mentions-bot/internal/config"
	"github.com/aurashield/mentions-bot/internal/credentials"
	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/poller"
	"github.com/aurashield/mentions-bot/internal/scheduler"
	"github.com/aurashield/mentions-bot/internal/scoring"
	"github.com/aurashield/mentions-bot/internal/sentiment"
	"github.com/aurashield/mentions-bot/internal/sources"
	"github.com/aurashield/mentions-bot/internal/store"
	"github.com/aurashield/mentions-bot/internal/transport"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting AuraShield Mentions Bot")

	// Initialize persistence
	db, err := store.Open(cfg.DatabaseDSN, logrus.StandardLogger())
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}

	// Shared outbound HTTP client with retry and backoff
	client := transport.NewClient(cfg.HTTPTimeout, cfg.MaxRetries, cfg.RetryBaseDelay)

	// Platform credential grants
	grants := make(map[string]credentials.Grant)
	if cfg.ForumEnabled() {
		grants[string(models.SourceForum)] = &credentials.ClientCredentialsGrant{
			Platform:     string(models.SourceForum),
			TokenURL:     cfg.ForumTokenURL,
			ClientID:     cfg.ForumClientID,
			ClientSecret: cfg.ForumClientSecret,
		}
	}
	if cfg.MicroblogEnabled() {
		grants[string(models.SourceMicroblog)] = &credentials.ClientCredentialsGrant{
			Platform:     string(models.SourceMicroblog),
			TokenURL:     cfg.MicroblogTokenURL,
			ClientID:     cfg.MicroblogClientID,
			ClientSecret: cfg.MicroblogClientSecret,
		}
	}
	if cfg.VideoEnabled() {
		grants[string(models.SourceVideo)] = &credentials.RefreshTokenGrant{
			Platform:     string(models.SourceVideo),
			TokenURL:     cfg.VideoTokenURL,
			ClientID:     cfg.VideoClientID,
			ClientSecret: cfg.VideoClientSecret,
			RefreshToken: cfg.VideoRefreshToken,
		}
	}
	creds := credentials.NewManager(client, grants)

	// Platform connectors
	connectors := []sources.Connector{
		sources.NewForumConnector(client, creds, cfg.ForumAPIBase, cfg.ForumCommunities, cfg.ForumEnabled()),
		sources.NewMicroblogConnector(client, creds, cfg.MicroblogAPIBase, cfg.MicroblogWindow, cfg.MicroblogEnabled()),
		sources.NewVideoConnector(client, creds, cfg.VideoAPIBase, cfg.VideoAPIKey, cfg.VideoEnabled()),
		sources.NewPlaceReviewConnector(client, cfg.PlaceAPIBase, cfg.PlaceAPIKey, cfg.PlaceReviewEnabled()),
	}

	// Sentiment classifier, LLM-backed when an API key is configured
	var llm llms.LLM
	if cfg.OpenAIAPIKey != "" {
		llm, err = openai.New(openai.WithToken(cfg.OpenAIAPIKey), openai.WithModel(cfg.SentimentModel))
		if err != nil {
			logrus.Fatalf("Failed to initialize sentiment model: %v", err)
		}
	} else {
		logrus.Warn("No OPENAI_API_KEY configured, sentiment uses keyword heuristic only")
	}
	classifier := sentiment.NewClassifier(llm, cfg.SentimentTimeout)

	scorer := scoring.NewScorer(cfg.EngagementCap, cfg.VelocityCap)

	// Alert channels
	var channels []alerts.Channel
	if cfg.AlertFromEmail != "" {
		channels = append(channels, alerts.NewEmailChannel(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.AlertFromEmail))
	}
	channels = append(channels, alerts.NewWebhookChannel(client))
	if cfg.SMSGatewayURL != "" {
		channels = append(channels, alerts.NewSMSChannel(client, cfg.SMSGatewayURL, cfg.SMSGatewayToken))
	}
	dispatcher := alerts.NewDispatcher(channels...)

	// Cycle report archive
	var archiver archive.Archiver = archive.Noop{}
	if cfg.StorageAccount != "" {
		archiver, err = archive.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize report archive: %v", err)
		}
	}

	// Orchestrator
	pollerService := poller.NewService(connectors, classifier, scorer, db, db, dispatcher, archiver, poller.Options{
		BatchSize:            cfg.BatchSize,
		BatchDelay:           cfg.BatchDelay,
		MaxConcurrentFetches: cfg.MaxConcurrentFetches,
		MaxPages:             cfg.MaxPages,
		AlertBatchLimit:      cfg.AlertBatchLimit,
		CrisisThreshold:      cfg.CrisisThreshold,
		CycleBudget:          cfg.CycleBudget,
	})

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, pollerService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server for health checks, triggers and the read API
	router := mux.NewRouter()
	api := &apiServer{poller: pollerService, store: db}

	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", api.metricsHandler).Methods("GET")
	router.HandleFunc("/poll", api.pollHandler).Methods("POST")
	router.HandleFunc("/api/mentions", api.listMentionsHandler).Methods("GET")
	router.HandleFunc("/api/subjects", api.trackSubjectHandler).Methods("POST")
	router.HandleFunc("/api/subjects/{id}", api.untrackSubjectHandler).Methods("DELETE")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the poll trigger responds only after the
		// cycle finishes, which can take minutes.
		IdleTimeout: 60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
