// Package main provides the CLI entry point for alert-evaluator.
// It runs evaluation cycles on a schedule and on rule.changed events, and
// dispatches triggered alerts to their channels.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finsightx/alert-engine/internal/config"
	"github.com/finsightx/alert-engine/internal/database"
	"github.com/finsightx/alert-engine/internal/dispatcher"
	"github.com/finsightx/alert-engine/internal/evaluator"
	"github.com/finsightx/alert-engine/internal/metricsource"
	"github.com/finsightx/alert-engine/internal/producer"
	"github.com/finsightx/alert-engine/internal/router"
	"github.com/finsightx/alert-engine/internal/ruleconsumer"
	"github.com/finsightx/alert-engine/internal/scheduler"
	"github.com/finsightx/alert-engine/pkg/metrics"
	"github.com/finsightx/alert-engine/pkg/shared"
)

const serviceName = "alert-evaluator"

func main() {
	cfg := &config.EvaluatorConfig{}
	if err := config.Load(flag.CommandLine, os.Args[1:], cfg); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	shared.SetupLogging(serviceName)

	slog.Info("Starting alert-evaluator",
		"kafka_brokers", cfg.KafkaBrokers,
		"rule_changed_topic", cfg.RuleChangedTopic,
		"rule_changed_group_id", cfg.RuleChangedGroupID,
		"alert_triggered_topic", cfg.AlertTriggeredTopic,
		"redis_addr", cfg.RedisAddr,
		"postgres_dsn", shared.MaskDSN(cfg.PostgresDSN),
		"metrics_dsn", shared.MaskDSN(cfg.AnalysisDSN()),
		"evaluation_interval", cfg.EvaluationInterval,
		"workers", cfg.Workers,
		"email_provider", cfg.EmailProvider,
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

	slog.Info("Connecting to analysis store")
	pool, err := metricsource.OpenPool(ctx, cfg.AnalysisDSN())
	if err != nil {
		slog.Error("Failed to connect to analysis store", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Successfully connected to analysis store")

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

	var source metricsource.Source = metricsource.NewPostgresSource(pool, cfg.MetricMaxAge)
	if cfg.MetricCacheTTL > 0 {
		source = metricsource.NewCachedSource(source, redisClient, cfg.MetricCacheTTL)
	}

	emails, err := newEmailProviders(ctx, cfg.EmailProvider)
	if err != nil {
		slog.Error("Failed to configure email providers", "error", err)
		os.Exit(1)
	}
	registry := dispatcher.NewDefaultRegistry(channelsFromEnv(emails, cfg.EmailFrom, redisClient))
	slog.Info("Registered notification senders", "channels", registry.List())

	dispatchCfg := dispatcher.DefaultConfig()
	dispatchCfg.ChannelTimeout = cfg.ChannelTimeout
	d := dispatcher.New(registry, dispatchCfg)

	slog.Info("Connecting to Kafka producer", "topic", cfg.AlertTriggeredTopic)
	kafkaProducer, err := producer.NewProducer(cfg.KafkaBrokers, cfg.AlertTriggeredTopic)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		os.Exit(1)
	}
	defer kafkaProducer.Close()
	slog.Info("Successfully connected to Kafka producer")

	eval := evaluator.New(db, source, d, evaluator.Config{
		Workers:              cfg.Workers,
		FetchTimeout:         cfg.FetchTimeout,
		MinRetriggerInterval: cfg.MinRetriggerInterval,
	},
		evaluator.WithPublisher(kafkaProducer),
		evaluator.WithMetrics(collector),
	)

	sched := scheduler.New(eval, scheduler.Config{
		Interval:     cfg.EvaluationInterval,
		MaxOverlap:   cfg.MaxOverlap,
		CycleTimeout: cfg.CycleTimeout,
		RunOnStart:   true,
	})

	slog.Info("Connecting to rule.changed consumer", "topic", cfg.RuleChangedTopic)
	ruleChangedConsumer, err := ruleconsumer.NewConsumer(cfg.KafkaBrokers, cfg.RuleChangedTopic, cfg.RuleChangedGroupID)
	if err != nil {
		slog.Error("Failed to create rule.changed consumer", "error", err)
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		os.Exit(1)
	}
	defer ruleChangedConsumer.Close()
	slog.Info("Successfully connected to rule.changed consumer")

	go ruleChangedConsumer.Run(ctx, sched)

	server := router.NewServer(cfg.HTTPPort, opsHandler())
	go func() {
		slog.Info("Starting ops HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Ops HTTP server error", "error", err)
		}
	}()

	// Blocks until ctx is cancelled and in-flight cycles finish.
	sched.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error shutting down ops server", "error", err)
	}

	slog.Info("alert-evaluator stopped")
}

// opsHandler serves the health check and Prometheus scrape endpoint.
func opsHandler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
