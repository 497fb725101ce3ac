package model

import "github.com/shopspring/decimal"

// Inbound real-time command payloads. Field names match the wire protocol.

type JoinAuctionRequest struct {
	AuctionID int64 `json:"auctionId" validate:"required,min=1"`
}

type PlaceBidRequest struct {
	UserID    int64           `json:"userId" validate:"required,min=1"`
	AuctionID int64           `json:"auctionId" validate:"required,min=1"`
	BidAmount decimal.Decimal `json:"bidAmount" validate:"gt=0"`
}

type AuctionEndRequest struct {
	AuctionID int64 `json:"auctionId" validate:"required,min=1"`
}

// ServerMessage is the outbound real-time envelope. Exactly one of Message or
// Error is set; AuctionID accompanies room broadcasts.
type ServerMessage struct {
	Message   string `json:"message,omitempty"`
	AuctionID int64  `json:"auctionId,omitempty"`
	Error     string `json:"error,omitempty"`
}
