package main

import (
	"context"

	"github.com/redis/go-redis/v9"

	"carbid/internal/auctions/handler"
	"carbid/internal/auctions/repository"
	"carbid/internal/auctions/service"
	"carbid/internal/auctions/validator"
	"carbid/pkg/app"
	"carbid/pkg/config"
	"carbid/pkg/db/postgres"
)

const ServiceName = "auctions"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Auctions service")

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

	auctionValidator := validator.NewAuctionValidator(cfg.Log)
	auctionService := service.NewAuctionService(
		repository.NewPostgresAuctionRepository(pool),
		repository.NewPostgresCarRepository(pool),
		repository.NewPostgresUserRepository(pool),
		auctionValidator,
		cfg,
	)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		handler.NewAuctionHandler(auctionService, cfg.Log),
		handler.NewHealthHandler(pool, cfg.Log),
		redisClient,
	)
	serverApp.Run()
}
