// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tarksober/license-backend/internal/config"
	"github.com/tarksober/license-backend/internal/database"
	"github.com/tarksober/license-backend/internal/events"
	"github.com/tarksober/license-backend/internal/i18n"
	"github.com/tarksober/license-backend/internal/maksekeskus"
	"github.com/tarksober/license-backend/internal/router"
	"github.com/tarksober/license-backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	configureLogging(cfg)

	// Initialize i18n
	if err := i18n.Initialize(cfg.I18n.DefaultLocale); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db); err != nil {
			logrus.WithError(err).Fatal("Failed to run migrations")
		}
	}

	var cache services.MethodsCache = services.NewDBMethodsCache(db)
	if cfg.Redis.URL != "" {
		client, err := database.ConnectRedis(context.Background(), cfg.Redis.URL)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to redis")
		}
		defer client.Close()
		cache = services.NewRedisMethodsCache(client)
	}

	var publisher events.Publisher = events.NewLoggingPublisher(logrus.StandardLogger())
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to create event publisher")
		}
		publisher = kafkaPublisher
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close event publisher")
		}
	}()

	gateway := maksekeskus.NewClient(
		cfg.Gateway.APIBaseURL(),
		maksekeskus.Credentials{ShopID: cfg.Gateway.ShopID, SecretKey: cfg.Gateway.SecretKey},
		time.Duration(cfg.Gateway.Timeout)*time.Second,
	)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	stop := make(chan struct{})
	defer close(stop)

	// Initialize router
	r := router.Initialize(router.Dependencies{
		DB:        db,
		Config:    cfg,
		Gateway:   gateway,
		Cache:     cache,
		Publisher: publisher,
		Logger:    logrus.StandardLogger(),
		Stop:      stop,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":        cfg.Server.Port,
			"gateway_env": cfg.Gateway.Env,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}

func configureLogging(cfg *config.Config) {
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
