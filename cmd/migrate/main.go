package main

import (
	"context"

	"carbid/pkg/config"
	"carbid/pkg/db/postgres"
)

const ServiceName = "migrate"

func main() {
	cfg := config.Load(ServiceName)

	ctx := context.Background()
	pool, err := postgres.Connect(ctx, cfg.PostgresURL, cfg.PostgresMaxConns, cfg.PostgresConnTimeout, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}

	cfg.Log.Info("Schema migration completed")
}
