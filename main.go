package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cooking-assistant/api"
	"cooking-assistant/config"
	"cooking-assistant/providers/community"
	"cooking-assistant/services"
	"cooking-assistant/storage"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database
	db, err := storage.Open(cfg)
	if err != nil {
		logging.Fatal("Failed to open database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	logging.Info("Successfully connected to database.", zap.String("driver", cfg.DBDriver))

	if err := storage.Migrate(db, logging); err != nil {
		logging.Fatal("Database migration failed", zap.Error(err))
	}

	store, err := storage.NewCookingStore(db, logging)
	if err != nil {
		logging.Fatal("Failed to load cooking store", zap.Error(err))
	}

	// Setup Services
	fetcher := community.NewFetcher(cfg, logging)
	coordinator := services.NewCoordinator(store, fetcher, logging)
	hub := api.NewHub(coordinator, logging)

	if gin.Mode() == gin.ReleaseMode {
		logging.Info("Running in release mode.")
	}
	router := api.NewRouter(cfg, coordinator, hub, logging)

	// Setup Cron
	var cronScheduler *cron.Cron
	if cfg.CommunityRefreshSchedule != "" {
		cronScheduler = cron.New()
		_, err := cronScheduler.AddFunc(cfg.CommunityRefreshSchedule, func() {
			logging.Info("Running scheduled community fetch...")
			coordinator.FetchOnline()
		})
		if err != nil {
			logging.Fatal("Invalid COMMUNITY_REFRESH_SCHEDULE", zap.String("schedule", cfg.CommunityRefreshSchedule), zap.Error(err))
		}
		cronScheduler.Start()
		logging.Info("Community refresh scheduled", zap.String("schedule", cfg.CommunityRefreshSchedule))
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logging.Info("Shutting down...")

	if cronScheduler != nil {
		<-cronScheduler.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", zap.Error(err))
	}
	hub.Close()
	// wartet auf noch laufende Schreibzugriffe
	coordinator.Close()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logging.Info("Shutdown complete.")
}
