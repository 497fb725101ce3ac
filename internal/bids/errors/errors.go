package errors

import "errors"

var (
	// ErrAuctionNotFound means the bid referenced an auction id with no ledger row.
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrQueueFull means the per-auction bid queue hit its configured depth bound.
	ErrQueueFull = errors.New("bid queue full")
)
