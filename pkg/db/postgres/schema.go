package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS cars (
	id BIGSERIAL PRIMARY KEY,
	make VARCHAR(100) NOT NULL,
	model VARCHAR(100) NOT NULL,
	year INT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(100) NOT NULL,
	email VARCHAR(255) NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS auctions (
	id BIGSERIAL PRIMARY KEY,
	name VARCHAR(200) NOT NULL,
	start_time TIMESTAMP WITH TIME ZONE NOT NULL,
	end_time TIMESTAMP WITH TIME ZONE NOT NULL,
	car_id BIGINT NOT NULL REFERENCES cars(id),
	current_highest_bid NUMERIC(18,2) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bids (
	id BIGSERIAL PRIMARY KEY,
	auction_id BIGINT NOT NULL REFERENCES auctions(id),
	user_id BIGINT NOT NULL REFERENCES users(id),
	bid_amount NUMERIC(18,2) NOT NULL,
	timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_bids_auction ON bids(auction_id);
CREATE INDEX IF NOT EXISTS idx_auctions_end_time ON auctions(end_time);
`

// Migrate applies the auction schema. Statements are idempotent so the
// migration can run on every deploy.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
