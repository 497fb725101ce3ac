package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	aucerrors "carbid/internal/auctions/errors"
	"carbid/pkg/model"
)

type CarRepository interface {
	Create(ctx context.Context, car *model.Car) error
	FindByID(ctx context.Context, id int64) (*model.Car, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Car, error)
}

type postgresCarRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCarRepository(pool *pgxpool.Pool) CarRepository {
	return &postgresCarRepository{pool: pool}
}

func (r *postgresCarRepository) Create(ctx context.Context, car *model.Car) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO cars (make, model, year) VALUES ($1, $2, $3) RETURNING id`,
		car.Make, car.Model, car.Year,
	).Scan(&car.ID)
	if err != nil {
		return fmt.Errorf("inserting car: %w", err)
	}
	return nil
}

func (r *postgresCarRepository) FindByID(ctx context.Context, id int64) (*model.Car, error) {
	var car model.Car
	err := r.pool.QueryRow(ctx,
		`SELECT id, make, model, year FROM cars WHERE id = $1`, id,
	).Scan(&car.ID, &car.Make, &car.Model, &car.Year)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, aucerrors.ErrNotFound
		}
		return nil, fmt.Errorf("reading car %d: %w", id, err)
	}
	return &car, nil
}

func (r *postgresCarRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Car, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, make, model, year FROM cars ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing cars: %w", err)
	}
	defer rows.Close()

	var cars []*model.Car
	for rows.Next() {
		var car model.Car
		if err := rows.Scan(&car.ID, &car.Make, &car.Model, &car.Year); err != nil {
			return nil, fmt.Errorf("scanning car row: %w", err)
		}
		cars = append(cars, &car)
	}
	return cars, rows.Err()
}
