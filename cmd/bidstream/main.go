package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"carbid/internal/admission"
	"carbid/internal/bids/repository"
	"carbid/internal/bids/serializer"
	"carbid/internal/bids/service"
	"carbid/internal/bids/validator"
	"carbid/internal/cache"
	"carbid/internal/gateway"
	"carbid/internal/rooms"
	"carbid/pkg/config"
	"carbid/pkg/db/postgres"
	"carbid/pkg/kafka"
	kafka_config "carbid/pkg/kafka/config"
)

const ServiceName = "bidstream"

func main() {
	if os.Getenv(config.EnvPort) == "" {
		os.Setenv(config.EnvPort, "8080")
	}
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Bidstream service")

	pool, err := postgres.Connect(context.Background(), cfg.PostgresURL, cfg.PostgresMaxConns, cfg.PostgresConnTimeout, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	producer, err := kafka.NewProducer(kafka_config.Load(), service.BidEventsTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	defer producer.Close()

	registry := rooms.NewRegistry(cfg.Log)
	bidService := service.NewBidService(
		serializer.New(cfg.BidQueueDepth, cfg.Log),
		repository.NewPostgresLedger(pool, cfg.Log),
		cache.NewRedisMirror(redisClient),
		registry,
		validator.NewBidValidator(cfg.Log),
		producer,
		cfg,
	)

	gate := admission.NewConnectionGate(cfg.MaxConnsPerOrigin, cfg.Log)
	limiter := admission.NewMessageLimiter(cfg.MessageRateLimit, cfg.MessageRateWindow, cfg.Log)
	defer limiter.Stop()

	ws := gateway.NewServer(gate, limiter, bidService, registry, cfg)

	// No read/write timeouts: connections are long-lived websockets and the
	// gateway manages its own per-write deadlines after the upgrade.
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: ws.Handler(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		cfg.Log.Info("Starting websocket server", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		cfg.Log.Fatal("Websocket server failed", "error", err)

	case sig := <-shutdown:
		cfg.Log.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			cfg.Log.Error("Server shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				cfg.Log.Fatal("Could not stop server gracefully", "error", err)
			}
		}
		cfg.Log.Info("Server stopped gracefully")
	}
}
