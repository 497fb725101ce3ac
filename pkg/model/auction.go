package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Auction struct {
	ID                int64           `json:"id,omitempty"`
	Name              string          `json:"name" validate:"required,min=2,max=200"`
	StartTime         time.Time       `json:"start_time" validate:"required"`
	EndTime           time.Time       `json:"end_time" validate:"required,gtfield=StartTime"`
	CarID             int64           `json:"car_id" validate:"required,min=1"`
	CurrentHighestBid decimal.Decimal `json:"current_highest_bid"`
}

// Bid rows are append-only; a bid is never updated or deleted once inserted.
type Bid struct {
	ID        int64           `json:"id,omitempty"`
	AuctionID int64           `json:"auction_id" validate:"required,min=1"`
	UserID    int64           `json:"user_id" validate:"required,min=1"`
	BidAmount decimal.Decimal `json:"bid_amount" validate:"required"`
	Timestamp time.Time       `json:"timestamp"`
}
