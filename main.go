package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clinic_server/config"
	"clinic_server/internal/bootstrap"
	"clinic_server/pkg/crypto"
	"clinic_server/pkg/logger"
	"clinic_server/pkg/snowflake"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "clinic-server",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	if cfg.IsDevelopment() {
		logger.Init(logger.Config{
			Level:   logger.LevelDebug,
			Service: "clinic-server",
		})
	}

	if err := crypto.Init(); err != nil {
		logger.Fatal("Failed to initialize encryption: %v", err)
	}
	if err := snowflake.Init(cfg.SnowflakeNode); err != nil {
		logger.Fatal("Failed to initialize ID generator: %v", err)
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application: %v", err)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down (timeout: %v)...", shutdownTimeout)

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- app.Shutdown(ctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				logger.Error("Error shutting down: %v", err)
			} else {
				logger.Info("Server shut down gracefully")
			}
		case <-ctx.Done():
			logger.Warn("Shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
