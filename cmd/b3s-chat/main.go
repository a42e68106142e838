package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/isntboxs/b3s-chat/internal/api"
	"github.com/isntboxs/b3s-chat/internal/config"
	"github.com/isntboxs/b3s-chat/internal/repository"
	"github.com/isntboxs/b3s-chat/internal/service"
	"github.com/isntboxs/b3s-chat/internal/upstream"
)

var (
	configPath = flag.String("config", "", "Path to config file")
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize history persistence (optional)
	var history service.HistoryStore
	var db *repository.DB
	if cfg.History.Enabled {
		db, err = repository.NewDB(cfg.Database.Path)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()
		history = repository.NewHistoryRepository(db)
	} else {
		logger.Info("History persistence disabled, sessions are ephemeral")
	}

	// Model catalog, validated up front
	catalog, err := service.NewModelCatalog(cfg.Models, cfg.Chat.DefaultModel)
	if err != nil {
		logger.Fatal("Invalid model catalog", zap.Error(err))
	}

	// Inference endpoint client
	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.ChatPath, logger)

	// Chat service
	chatService := service.NewChatService(history, client, catalog, logger)

	// Setup router
	router := api.SetupRouter(chatService, api.RouterConfig{
		APIKey:       cfg.Admin.APIKey,
		AllowOrigins: []string{"*"},
	})

	// Create HTTP server. No write timeout: chat streams are long-lived.
	srv := &http.Server{
		Addr:        cfg.Address(),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting B3S Chat server",
			zap.String("address", cfg.Address()),
			zap.String("upstream", cfg.Upstream.BaseURL),
			zap.String("default_model", catalog.Default().ID),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
