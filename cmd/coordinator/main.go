package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticketd/internal/capacity"
	"ticketd/internal/config"
	"ticketd/internal/consumers"
	"ticketd/internal/database"
	"ticketd/internal/logger"
	"ticketd/internal/messaging"
	"ticketd/internal/repository"
	"ticketd/internal/search"
)

// The coordinator owns the capacity counters: it serves the reserve/release
// RPC subjects and keeps the search index's availability in sync with
// booking notifications.
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	cfg.NATS.Name = getEnv("NATS_CLIENT_NAME", "ticketd-coordinator")

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	bus, err := messaging.Connect(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	searchClient, err := search.NewClient(cfg.Search)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	repos := repository.NewRepositories(db)

	capacitySvc := capacity.NewService(repos.Events, bus)
	if err := capacitySvc.Start(); err != nil {
		logger.Fatal("Failed to start capacity coordinator", "error", err)
	}

	consumerSvc := consumers.NewService(bus, repos, searchClient)
	if err := consumerSvc.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	logger.Get().Info("Coordinator started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("Shutting down coordinator...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumerSvc.Shutdown(ctx); err != nil {
		logger.Get().Error("Error during shutdown", "error", err)
	}
	if err := db.Close(); err != nil {
		logger.Get().Error("Error closing database connection", "error", err)
	}

	logger.Get().Info("Coordinator stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
