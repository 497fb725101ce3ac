package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	biderrors "carbid/internal/bids/errors"
	"carbid/pkg/logger"
	"carbid/pkg/model"
)

// Outcome is the terminal result of one bid transaction.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeRejected
)

// BidResult carries the committed state after a bid transaction. On accept,
// HighestBid is the new highest and Bid is the inserted row; on reject,
// HighestBid is the current highest the bid failed to beat.
type BidResult struct {
	Outcome    Outcome
	HighestBid decimal.Decimal
	Bid        *model.Bid
}

// LedgerRepository is the durable, authoritative record of auctions and bids.
type LedgerRepository interface {
	// TryAcceptBid runs the atomic read-lock-validate-write bid transaction.
	// Infrastructure failures and unknown auction ids are returned as errors
	// (the latter wrapping biderrors.ErrAuctionNotFound); a too-low bid is a
	// normal OutcomeRejected result, not an error.
	TryAcceptBid(ctx context.Context, auctionID, userID int64, amount decimal.Decimal) (BidResult, error)

	// HighestBid reads the committed highest bid without locking. Used for
	// cache-miss fallback and auction-end resolution.
	HighestBid(ctx context.Context, auctionID int64) (decimal.Decimal, error)
}

type postgresLedger struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func NewPostgresLedger(pool *pgxpool.Pool, log *logger.Logger) LedgerRepository {
	return &postgresLedger{pool: pool, log: log}
}

func (r *postgresLedger) TryAcceptBid(ctx context.Context, auctionID, userID int64, amount decimal.Decimal) (BidResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return BidResult{}, fmt.Errorf("beginning bid transaction: %w", err)
	}

	// The in-process serializer already guarantees one logical caller per
	// auction; the row lock is the backstop against out-of-process writers.
	var currentStr string
	err = tx.QueryRow(ctx,
		`SELECT current_highest_bid::text FROM auctions WHERE id = $1 FOR UPDATE`,
		auctionID,
	).Scan(&currentStr)
	if err != nil {
		r.rollback(ctx, tx, auctionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return BidResult{}, fmt.Errorf("auction %d: %w", auctionID, biderrors.ErrAuctionNotFound)
		}
		return BidResult{}, fmt.Errorf("locking auction %d: %w", auctionID, err)
	}

	current, err := decimal.NewFromString(currentStr)
	if err != nil {
		r.rollback(ctx, tx, auctionID)
		return BidResult{}, fmt.Errorf("parsing highest bid for auction %d: %w", auctionID, err)
	}

	if !amount.GreaterThan(current) {
		r.rollback(ctx, tx, auctionID)
		return BidResult{Outcome: OutcomeRejected, HighestBid: current}, nil
	}

	bid := &model.Bid{
		AuctionID: auctionID,
		UserID:    userID,
		BidAmount: amount,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO bids (auction_id, user_id, bid_amount) VALUES ($1, $2, $3) RETURNING id, timestamp`,
		auctionID, userID, amount.String(),
	).Scan(&bid.ID, &bid.Timestamp)
	if err != nil {
		r.rollback(ctx, tx, auctionID)
		return BidResult{}, fmt.Errorf("inserting bid for auction %d: %w", auctionID, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE auctions SET current_highest_bid = $1 WHERE id = $2`,
		amount.String(), auctionID,
	); err != nil {
		r.rollback(ctx, tx, auctionID)
		return BidResult{}, fmt.Errorf("updating highest bid for auction %d: %w", auctionID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.rollback(ctx, tx, auctionID)
		return BidResult{}, fmt.Errorf("committing bid for auction %d: %w", auctionID, err)
	}

	return BidResult{Outcome: OutcomeAccepted, HighestBid: amount, Bid: bid}, nil
}

func (r *postgresLedger) HighestBid(ctx context.Context, auctionID int64) (decimal.Decimal, error) {
	var currentStr string
	err := r.pool.QueryRow(ctx,
		`SELECT current_highest_bid::text FROM auctions WHERE id = $1`,
		auctionID,
	).Scan(&currentStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("auction %d: %w", auctionID, biderrors.ErrAuctionNotFound)
		}
		return decimal.Zero, fmt.Errorf("reading highest bid for auction %d: %w", auctionID, err)
	}

	current, err := decimal.NewFromString(currentStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing highest bid for auction %d: %w", auctionID, err)
	}
	return current, nil
}

// rollback is best-effort: a rollback failure is logged, never escalated. The
// database discards the transaction on connection teardown regardless.
func (r *postgresLedger) rollback(ctx context.Context, tx pgx.Tx, auctionID int64) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.log.Error("Failed to roll back bid transaction", "auction_id", auctionID, "error", err)
	}
}
