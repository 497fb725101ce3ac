package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisMirror stores each auction's highest bid under an auction_<id> key.
type RedisMirror struct {
	client *redis.Client
}

func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

func (m *RedisMirror) Set(ctx context.Context, auctionID int64, amount decimal.Decimal) error {
	return m.client.Set(ctx, mirrorKey(auctionID), amount.String(), 0).Err()
}

func (m *RedisMirror) Get(ctx context.Context, auctionID int64) (decimal.Decimal, bool, error) {
	val, err := m.client.Get(ctx, mirrorKey(auctionID)).Result()
	if err == redis.Nil {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	amount, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt cache value for auction %d: %w", auctionID, err)
	}
	return amount, true, nil
}

func mirrorKey(auctionID int64) string {
	return fmt.Sprintf("auction_%d", auctionID)
}
