// Package main is the entry point for the chat API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parley-ai/parley/internal/checkpoint"
	"github.com/parley-ai/parley/internal/config"
	"github.com/parley-ai/parley/internal/engine"
	"github.com/parley-ai/parley/internal/events"
	"github.com/parley-ai/parley/internal/handler"
	"github.com/parley-ai/parley/internal/llm"
	"github.com/parley-ai/parley/internal/middleware"
	"github.com/parley-ai/parley/internal/service"
	"github.com/parley-ai/parley/internal/tool"
	"github.com/parley-ai/parley/internal/web"
	"github.com/parley-ai/parley/pkg/logger"
	"github.com/parley-ai/parley/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting chat server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "parley", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the checkpoint store. A SQLite failure degrades to an in-memory
	// store so the chat stays usable without durability.
	var store checkpoint.Store
	sqlStore, err := checkpoint.NewSQLiteStore(ctx, cfg.DBPath)
	if err != nil {
		log.Warn("failed to open SQLite store, falling back to memory",
			zap.String("db_path", cfg.DBPath),
			zap.Error(err),
		)
		store = checkpoint.NewMemoryStore()
	} else {
		store = sqlStore
	}
	defer store.Close()

	// Connect the event publisher when NATS is configured
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		natsPub, err := events.Connect(ctx, events.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Warn("failed to connect to NATS, event fan-out disabled", zap.Error(err))
		} else {
			defer natsPub.Close()
			publisher = natsPub
		}
	}

	// Initialize the LLM client
	provider := llm.Provider(cfg.LLMProvider)
	llmClient, err := llm.NewClient(provider, llmAPIKey(cfg, provider), cfg.LLMBaseURL)
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}
	log.Info("LLM client ready", zap.String("provider", llmClient.Name()))

	// Register tools
	registry := tool.NewRegistry(log, cfg.ToolTimeout)
	registry.Register(tool.NewSearch(cfg.SearchEndpoint))
	registry.Register(tool.NewCalculator())
	registry.Register(tool.NewStockQuote(cfg.AlphaVantageURL, cfg.AlphaVantageAPIKey))

	// Build the turn engine and services
	eng := engine.New(llmClient, registry, store, log, engine.Config{
		Model:         cfg.LLMModel,
		MaxTokens:     cfg.LLMMaxTokens,
		MaxToolCycles: cfg.MaxToolCycles,
		ModelTimeout:  cfg.LLMTimeout,
	})

	threadSvc := service.NewThreadService(store, log)
	if err := threadSvc.Hydrate(ctx); err != nil {
		log.Warn("failed to hydrate threads from store", zap.Error(err))
	}
	turnSvc := service.NewTurnService(threadSvc, eng, publisher, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(store)
	threadHandler := handler.NewThreadHandler(threadSvc, store, log)
	messageHandler := handler.NewMessageHandler(turnSvc, log)
	streamHandler := handler.NewStreamHandler(turnSvc, threadSvc, store, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/healthz", healthHandler.Health)
	r.Get("/readyz", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
		}
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Threads
		r.Route("/threads", func(r chi.Router) {
			r.Post("/", threadHandler.Create)
			r.Get("/", threadHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", threadHandler.Get)

				// Messages
				r.Get("/messages", threadHandler.Messages)
				r.Post("/messages", messageHandler.Send)

				// Streaming
				r.Get("/stream", streamHandler.Stream)
				r.Post("/stream", streamHandler.StreamTurn)
			})
		})
	})

	// Embedded chat client
	r.Handle("/*", web.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// llmAPIKey picks the credential matching the configured provider.
func llmAPIKey(cfg *config.Config, provider llm.Provider) string {
	switch provider {
	case llm.ProviderOpenAI:
		return cfg.OpenAIAPIKey
	case llm.ProviderAnthropic:
		return cfg.AnthropicAPIKey
	default:
		return cfg.GroqAPIKey
	}
}
