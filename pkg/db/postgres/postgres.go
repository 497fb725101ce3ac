package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"carbid/pkg/logger"
)

// Connect opens a pgx pool against the configured database and verifies
// connectivity before returning it.
func Connect(ctx context.Context, url string, maxConns int, connTimeout time.Duration, log *logger.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres url: %w", err)
	}
	poolCfg.MaxConns = int32(maxConns)
	poolCfg.MaxConnLifetime = 5 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	log.Info("Connected to PostgreSQL", "max_conns", maxConns)
	return pool, nil
}
