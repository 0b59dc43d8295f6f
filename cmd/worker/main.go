package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jubensha-labs/mystery-engine/internal/config"
	"github.com/jubensha-labs/mystery-engine/internal/logger"
	"github.com/jubensha-labs/mystery-engine/internal/services"
	genqueue "github.com/jubensha-labs/mystery-engine/internal/services/queue"
	"github.com/jubensha-labs/mystery-engine/internal/storage"
	"github.com/jubensha-labs/mystery-engine/internal/worker"
	"github.com/jubensha-labs/mystery-engine/internal/worldgen"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Mystery Engine Worker",
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"redis_url", cfg.RedisURL)

	// Initialize queue service
	queueClient, err := genqueue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()

	generationQueue := genqueue.NewGenerationQueue(queueClient)
	log.Info("Queue service initialized successfully")

	// Initialize storage
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	var store storage.Storage
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		store, err = storage.NewPostgresStorage(storageCtx, cfg.DatabaseURL, log)
		if err != nil {
			log.Error("Failed to connect to postgres", "error", err)
			os.Exit(1)
		}
	case config.StorageRedis:
		store = storage.NewRedisStorage(cfg.RedisURL, log)
	}

	if err := store.Ping(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage service initialized successfully")

	// Initialize LLM service
	var llmService services.LLMService
	switch strings.ToLower(cfg.LLMProvider) {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			log.Error("Gemini API key is required when using gemini provider")
			os.Exit(1)
		}
		gemini, err := services.NewGeminiService(context.Background(), cfg.GeminiAPIKey, cfg.ModelName, log)
		if err != nil {
			log.Error("Failed to create Gemini service", "error", err)
			os.Exit(1)
		}
		defer gemini.Close()
		llmService = gemini
		log.Info("Using Gemini LLM provider")
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Error("OpenAI API key is required when using openai provider")
			os.Exit(1)
		}
		llmService = services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ModelName, log)
		log.Info("Using OpenAI LLM provider")
	default:
		log.Error("Invalid LLM provider specified", "provider", cfg.LLMProvider, "supported", []string{"gemini", "openai"})
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}
	log.Info("LLM service initialized successfully", "model", cfg.ModelName)

	pipeline := worldgen.New(store, llmService, log)

	// Create and start worker. Game locking shares the queue's Redis
	// connection.
	w := worker.New(generationQueue, pipeline, queueClient.GetRedisClient(), log, os.Getenv("WORKER_ID"))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for requests...")

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// Give worker time to finish current request
	time.Sleep(2 * time.Second)

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Worker exited")
}
