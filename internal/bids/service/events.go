package service

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Topic carrying every accepted bid and auction end, keyed by auction id
	// so downstream consumers see per-auction events in commit order.
	BidEventsTopic = "bid-events"

	EventBidAccepted  = "bid.accepted"
	EventAuctionEnded = "auction.ended"
)

// BidEvent is the payload published to the bid-events stream.
type BidEvent struct {
	Type      string          `json:"type"`
	AuctionID int64           `json:"auction_id"`
	UserID    int64           `json:"user_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}
