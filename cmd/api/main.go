package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/photogrid/internal/api"
	"github.com/timmy/photogrid/internal/api/handler"
	"github.com/timmy/photogrid/internal/config"
	"github.com/timmy/photogrid/internal/feed"
	"github.com/timmy/photogrid/internal/logger"
	"github.com/timmy/photogrid/internal/repository"
	"github.com/timmy/photogrid/internal/session"
	"github.com/timmy/photogrid/internal/source/unsplash"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if cfg.Unsplash.AccessKey == "" {
		appLogger.Warn("UNSPLASH_ACCESS_KEY is empty; every fetch will be rejected")
	}

	policy, err := feed.ParseEmptyPagePolicy(cfg.Feed.EmptyPagePolicy)
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid feed configuration")
	}

	opts := &session.Options{EmptyPagePolicy: policy, Dedupe: cfg.Feed.Dedupe}
	var attempts handler.AttemptLister
	if cfg.Database.Enabled {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize database")
		}
		repo := repository.NewFetchAttemptRepository(db)
		opts.Recorder = repo
		attempts = repo
	}

	fetcher := unsplash.NewAdapter(&unsplash.Config{
		BaseURL:   cfg.Unsplash.BaseURL,
		AccessKey: cfg.Unsplash.AccessKey,
		PerPage:   cfg.Unsplash.PerPage,
		Timeout:   cfg.Unsplash.Timeout,
	})

	baseCtx, stopSessions := context.WithCancel(appLogger.WithContext(context.Background()))
	defer stopSessions()
	sessions := session.NewManager(baseCtx, fetcher, opts)

	router := api.SetupRouter(sessions, attempts, api.RouterConfig{
		Mode:     cfg.Server.Mode,
		CORS:     cfg.Server.CORS,
		Logger:   appLogger,
		SourceID: fetcher.GetSourceID(),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":    cfg.Server.Port,
			"mode":    cfg.Server.Mode,
			"journal": cfg.Database.Enabled,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	sessions.CloseAll()

	appLogger.Info("Server exited")
}
