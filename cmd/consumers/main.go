package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"teetime/cmd/consumers/jobs"
	"teetime/internal/app"
	"teetime/internal/config"
	"teetime/internal/consumers"
	"teetime/internal/logger"
	"teetime/internal/messaging"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting consumers service...")

	// Override NATS client ID for consumers
	cfg.Messaging.NATS.ClientID = "teetime-consumers"
	if cfg.Messaging.Driver == messaging.DriverNone || cfg.Messaging.Driver == "" {
		slog.Warn("MESSAGING_DRIVER is none, only the hold reaper will run")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	// Start consuming messages
	consumerService := consumers.NewConsumerService(a.Bus, a.Services.Coordinator)
	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	reaper := jobs.NewHoldReaperJob(a.Repos.Slots, a.Repos.Discounts, a.Bus, a.Clock, cfg.Engine.ReaperInterval)
	reaper.Start(ctx)

	slog.Info("Consumers service started successfully")

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()

	slog.Info("Shutting down consumers service...")
	reaper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.Close(shutdownCtx)

	slog.Info("Consumers service stopped")
}
