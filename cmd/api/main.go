package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jubensha-labs/mystery-engine/internal/config"
	"github.com/jubensha-labs/mystery-engine/internal/handlers"
	"github.com/jubensha-labs/mystery-engine/internal/logger"
	"github.com/jubensha-labs/mystery-engine/internal/middleware"
	"github.com/jubensha-labs/mystery-engine/internal/relay"
	"github.com/jubensha-labs/mystery-engine/internal/services"
	genqueue "github.com/jubensha-labs/mystery-engine/internal/services/queue"
	"github.com/jubensha-labs/mystery-engine/internal/storage"
	"github.com/jubensha-labs/mystery-engine/internal/worldgen"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Mystery Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"llm_provider", cfg.LLMProvider,
		"model_name", cfg.ModelName)

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	var store storage.Storage
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		if err := storage.Migrate(cfg.DatabaseURL); err != nil {
			log.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
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
	log.Info("Storage connection established successfully")

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

	// Initialize the model on startup
	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := llmService.InitModel(initCtx, cfg.ModelName); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.ModelName)
		os.Exit(1)
	}

	// The queue is only needed for async generation. The API still works
	// without it.
	var generationQueue *genqueue.GenerationQueue
	queueClient, err := genqueue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Warn("Queue unavailable, async generation disabled", "error", err)
	} else {
		generationQueue = genqueue.NewGenerationQueue(queueClient)
		defer func() {
			if err := queueClient.Close(); err != nil {
				log.Error("Error closing queue client", "error", err)
			}
		}()
	}

	pipeline := worldgen.New(store, llmService, log)
	relayService := relay.New(store, llmService, cfg.ChatHistoryLimit, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, log)
	mux.Handle("/health", healthHandler)

	worldGenHandler := handlers.NewWorldGenHandler(store, pipeline, generationQueue, cfg.ModelName, cfg.Temperature, log)
	mux.Handle("/api/world/games", worldGenHandler)
	mux.Handle("/api/world/games/", worldGenHandler)

	gameHandler := handlers.NewGameHandler(store, relayService, cfg.ModelName, cfg.Temperature, log)
	mux.Handle("/api/games/", gameHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// Generation endpoints make several model calls in sequence, so
		// no WriteTimeout here.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	// Drain in-flight requests before closing their storage.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
