package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	aucerrors "carbid/internal/auctions/errors"
	"carbid/pkg/model"
)

type AuctionRepository interface {
	Create(ctx context.Context, auction *model.Auction) error
	FindByID(ctx context.Context, id int64) (*model.Auction, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Auction, error)
	Count(ctx context.Context) (int64, error)
}

type postgresAuctionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAuctionRepository(pool *pgxpool.Pool) AuctionRepository {
	return &postgresAuctionRepository{pool: pool}
}

func (r *postgresAuctionRepository) Create(ctx context.Context, auction *model.Auction) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO auctions (name, start_time, end_time, car_id, current_highest_bid)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		auction.Name, auction.StartTime, auction.EndTime, auction.CarID,
		auction.CurrentHighestBid.String(),
	).Scan(&auction.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("car %d: %w", auction.CarID, aucerrors.ErrForeignKey)
		}
		return fmt.Errorf("inserting auction: %w", err)
	}
	return nil
}

func (r *postgresAuctionRepository) FindByID(ctx context.Context, id int64) (*model.Auction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, start_time, end_time, car_id, current_highest_bid::text
		 FROM auctions WHERE id = $1`, id)

	auction, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, aucerrors.ErrNotFound
		}
		return nil, fmt.Errorf("reading auction %d: %w", id, err)
	}
	return auction, nil
}

func (r *postgresAuctionRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Auction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, start_time, end_time, car_id, current_highest_bid::text
		 FROM auctions ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing auctions: %w", err)
	}
	defer rows.Close()

	var auctions []*model.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning auction row: %w", err)
		}
		auctions = append(auctions, auction)
	}
	return auctions, rows.Err()
}

func (r *postgresAuctionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM auctions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting auctions: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*model.Auction, error) {
	var auction model.Auction
	var highestStr string
	if err := row.Scan(
		&auction.ID, &auction.Name, &auction.StartTime, &auction.EndTime,
		&auction.CarID, &highestStr,
	); err != nil {
		return nil, err
	}

	highest, err := decimal.NewFromString(highestStr)
	if err != nil {
		return nil, fmt.Errorf("parsing highest bid: %w", err)
	}
	auction.CurrentHighestBid = highest
	return &auction, nil
}
