// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ipscope/internal/cache"
	"github.com/javajoker/ipscope/internal/config"
	"github.com/javajoker/ipscope/internal/database"
	"github.com/javajoker/ipscope/internal/i18n"
	"github.com/javajoker/ipscope/internal/router"
	"github.com/javajoker/ipscope/internal/services"
	"github.com/javajoker/ipscope/internal/upstream"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(cfg)

	// Initialize i18n
	if err := i18n.Initialize(); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Resolved transfers are persisted only when a database is configured
	var store services.TransferStore = services.NopTransferStore{}
	if cfg.Database.Enabled {
		db, err := database.Initialize(cfg.Database)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize database")
		}
		defer database.Close(db)

		if err := database.RunMigrations(db); err != nil {
			logrus.WithError(err).Fatal("Failed to run migrations")
		}
		store = services.NewGormTransferStore(db)
	}

	responseCache, err := cache.New(cfg.Cache.TTL, cfg.Cache.Size, cache.WithName("responses"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create cache")
	}
	prices := services.NewPriceBook(cfg.Cache.PriceBookTTL)
	defer prices.Stop()

	storyAPI := upstream.NewClient(cfg.StoryAPI)
	explorer := upstream.NewExplorer(cfg.Explorer, upstream.NewRoundRobin(cfg.Explorer.APIKeys))

	royaltyService := services.NewRoyaltyService(storyAPI, explorer, responseCache, store, prices, cfg)
	assetService := services.NewAssetService(storyAPI, royaltyService, responseCache)
	resolver := services.NewAssetResolver(assetService)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r, limiter := router.Initialize(router.Services{Assets: assetService, Resolver: resolver}, cfg)
	defer limiter.Stop()

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithFields(logrus.Fields{
			"addr":        srv.Addr,
			"environment": cfg.Environment,
			"version":     router.Version,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
		return
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
