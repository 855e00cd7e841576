package main

import (
	"os"

	"github.com/nas-ai/uploads-api/src/config"
	"github.com/nas-ai/uploads-api/src/server"
	"github.com/sirupsen/logrus"

	_ "github.com/nas-ai/uploads-api/docs" // swagger docs
)

// @title Uploads API
// @version 1.0
// @description Web file and folder manager for an uploads directory, with a bridge to external blob storage.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the shared token.

// @securityDefinitions.basic BasicAuth

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	// Load configuration (FAIL-FAST if secrets missing!)
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Set log level
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"port":         cfg.Port,
		"environment":  cfg.Environment,
		"log_level":    cfg.LogLevel,
		"uploads_root": cfg.UploadsRoot,
		"auth_mode":    cfg.AuthMode,
		"lock_backend": cfg.LockBackend,
		"cors_origins": cfg.CORSOrigins,
		"rate_limit":   cfg.RateLimitPerMin,
	}).Info("Starting uploads API server")

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize server")
	}
	defer srv.Close()

	if err := srv.Run(); err != nil {
		logger.WithError(err).Error("Server stopped with error")
	}
}
