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

	"github.com/joho/godotenv"
	"github.com/ocdul/social-listening/internal/api"
	"github.com/ocdul/social-listening/internal/cache"
	"github.com/ocdul/social-listening/internal/config"
	"github.com/ocdul/social-listening/internal/dashboard"
	"github.com/ocdul/social-listening/internal/filters"
	"github.com/ocdul/social-listening/internal/gateway"
	"github.com/ocdul/social-listening/internal/models"
	"github.com/ocdul/social-listening/internal/notifications"
	"github.com/ocdul/social-listening/internal/scheduler"
	"github.com/ocdul/social-listening/internal/schema"
	"github.com/ocdul/social-listening/internal/session"
	"github.com/ocdul/social-listening/internal/storage"
	"github.com/sirupsen/logrus"
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

	logrus.Info("Starting social listening dashboard")

	ctx := context.Background()

	// Connect to the relational store
	pool := gateway.DefaultPoolConfig
	pool.MaxOpenConns = cfg.MaxOpenConns
	db, err := gateway.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, pool)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	registry := schema.Default()
	store := gateway.New(db, registry, gateway.Options{
		ContentSchema: cfg.ContentSchema,
		RawSchema:     cfg.RawSchema,
		AuditTable:    cfg.AuditTable,
	})

	// Initialize export storage
	exportStorage, err := newExportStorage(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize notification services
	notificationService := notifications.NewService(cfg)

	filterOpts := filters.DefaultOptions()
	filterOpts.MaxRangeDays = cfg.MaxRangeDays
	filterOpts.HistoryStart = cfg.HistoryStart
	filterOpts.Location = cfg.Location()

	sessions := session.NewManager(registry, filterOpts, cfg.SessionIdleTimeout)
	resultCache := cache.New[[]models.Mention](cfg.CacheTTL)
	dashboardService := dashboard.NewService(cfg, store, registry, resultCache, exportStorage, notificationService)

	// Initialize scheduler (sessions, cache and export retention)
	schedulerService := scheduler.NewService(cfg, sessions, dashboardService, dashboardService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewServer(sessions, dashboardService, store).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	if pending := sessions.Len(); pending > 0 {
		logrus.Warnf("Discarding %d open session(s) on shutdown", pending)
	}
	logrus.Info("Server exited")
}

// newExportStorage uses Azure Blob Storage when an account is configured and
// a local directory otherwise
func newExportStorage(ctx context.Context, cfg *config.Config) (storage.StorageInterface, error) {
	if cfg.StorageAccount != "" {
		return storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	}
	logrus.Infof("AZURE_STORAGE_ACCOUNT not set, writing exports to %s", cfg.ExportDir)
	return storage.NewFileStorage(cfg.ExportDir)
}
