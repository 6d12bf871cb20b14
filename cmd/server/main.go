package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"auditstream/internal/platform/config"
	"auditstream/internal/platform/flags"
	"auditstream/internal/platform/httpserver"
	"auditstream/internal/platform/kafka/consumer"
	"auditstream/internal/platform/logger"
	"auditstream/internal/platform/postgres"
	"auditstream/internal/platform/redis"
	"auditstream/internal/streaming/metrics"
	"auditstream/internal/streaming/service"
	"auditstream/internal/streaming/store/destination"
	"auditstream/internal/streaming/transport"
	"auditstream/internal/streaming/worker"
	httptransport "auditstream/internal/transport/http"
	"auditstream/pkg/secrets"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the streaming packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("opening destination database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	box, err := secrets.NewBox(cfg.SecretsMasterKey)
	if err != nil {
		log.Error("preparing secrets box", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("connecting to redis", "error", err)
		os.Exit(1)
	}

	flagDefaults := map[string]bool{
		service.ConsolidatedStreamingFlag: cfg.ConsolidatedStreaming,
	}
	var flagChecker service.FlagChecker = flags.Static(flagDefaults)
	if redisClient != nil {
		defer redisClient.Close()
		flagChecker = flags.NewRedis(redisClient.Client, flagDefaults, log)
	}

	store := destination.NewPostgres(db, box, log)
	transports := transport.NewSet(
		transport.NewWebhook(
			transport.WithWebhookLogger(log),
			transport.WithLocalNetworkAllowed(cfg.AllowLocalNetwork),
		),
		transport.NewObjectStore(transport.WithObjectStoreLogger(log)),
		transport.NewCloudLog(transport.WithCloudLogLogger(log)),
	)

	dispatcher := service.New(store, transports, flagChecker,
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
	)

	checks := []httptransport.HealthCheck{
		{Name: "postgres", Check: db.PingContext},
	}
	if redisClient != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: redisClient.Health})
	}

	handler := httptransport.NewHandler(dispatcher, log, checks...)
	router := httptransport.NewRouter(handler)
	srv := httpserver.New(cfg.Addr, router)

	if len(cfg.KafkaBrokers) > 0 {
		inbox, err := consumer.New(ctx, consumer.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Group:   cfg.KafkaGroup,
		}, worker.NewHandler(dispatcher, log), log)
		if err != nil {
			log.Error("starting inbox consumer", "error", err)
			os.Exit(1)
		}
		defer inbox.Close()
		go func() {
			if err := inbox.Run(ctx); err != nil {
				log.Error("inbox consumer stopped", "error", err)
				stop()
			}
		}()
		log.Info("inbox consumer started", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroup)
	}

	go func() {
		log.Info("auditstream listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
