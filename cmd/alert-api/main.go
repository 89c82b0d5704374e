// Package main provides the CLI entry point for alert-api.
// It serves rule management, alert inbox and real-time endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/finsightx/alert-engine/internal/config"
	"github.com/finsightx/alert-engine/internal/database"
	"github.com/finsightx/alert-engine/internal/handlers"
	"github.com/finsightx/alert-engine/internal/producer"
	"github.com/finsightx/alert-engine/internal/realtime"
	"github.com/finsightx/alert-engine/internal/router"
	"github.com/finsightx/alert-engine/pkg/metrics"
	"github.com/finsightx/alert-engine/pkg/shared"
)

const serviceName = "alert-api"

func main() {
	cfg := &config.APIConfig{}
	if err := config.Load(flag.CommandLine, os.Args[1:], cfg); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	shared.SetupLogging(serviceName)

	slog.Info("Starting alert-api",
		"http_port", cfg.HTTPPort,
		"kafka_brokers", cfg.KafkaBrokers,
		"rule_changed_topic", cfg.RuleChangedTopic,
		"redis_addr", cfg.RedisAddr,
		"postgres_dsn", shared.MaskDSN(cfg.PostgresDSN),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	slog.Info("Connecting to PostgreSQL database")
	db, err := database.NewDB(cfg.PostgresDSN)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		slog.Info("Tip: Start Postgres with 'docker compose up -d postgres' or ensure Postgres is running")
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Successfully connected to PostgreSQL database")

	if cfg.ApplySchema {
		if err := db.ApplySchema(ctx); err != nil {
			slog.Error("Failed to apply schema", "error", err)
			os.Exit(1)
		}
		slog.Info("Schema applied")
	}

	slog.Info("Connecting to Redis", "addr", cfg.RedisAddr)
	redisClient, err := shared.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		slog.Info("Tip: Start Redis with 'docker compose up -d redis'")
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("Successfully connected to Redis")

	collector := metrics.NewCollector(serviceName, redisClient)
	collector.SetReportInterval(cfg.MetricsReportInterval)
	collector.Start(ctx)
	defer collector.Stop()

	slog.Info("Connecting to Kafka producer", "topic", cfg.RuleChangedTopic)
	kafkaProducer, err := producer.NewProducer(cfg.KafkaBrokers, cfg.RuleChangedTopic)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		os.Exit(1)
	}
	defer kafkaProducer.Close()
	slog.Info("Successfully connected to Kafka producer")

	// In-app alerts published by alert-evaluator reach browsers through the hub.
	hub := realtime.NewHub()
	go hub.Run(ctx)
	go func() {
		if err := realtime.NewRelay(redisClient, hub).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("In-app relay stopped", "error", err)
		}
	}()

	h := handlers.NewHandlers(db, kafkaProducer,
		handlers.WithMetrics(collector),
		handlers.WithServiceMetrics(metrics.NewReader(redisClient)),
	)
	r := router.NewRouter(h, router.WithHub(hub), router.WithCollector(collector))
	server := router.NewServer(cfg.HTTPPort, r.Handler())

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down HTTP server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down server", "error", err)
		}
		slog.Info("HTTP server stopped")
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
		os.Exit(1)
	}

	slog.Info("alert-api stopped")
}
