package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	aucerrors "carbid/internal/auctions/errors"
	"carbid/pkg/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.User, error)
	Delete(ctx context.Context, id int64) error
}

type postgresUserRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepository(pool *pgxpool.Pool) UserRepository {
	return &postgresUserRepository{pool: pool}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`,
		user.Name, user.Email,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("email %s: %w", user.Email, aucerrors.ErrDuplicate)
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Name, &user.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, aucerrors.ErrNotFound
		}
		return nil, fmt.Errorf("reading user %d: %w", id, err)
	}
	return &user, nil
}

func (r *postgresUserRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

func (r *postgresUserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return aucerrors.ErrNotFound
	}
	return nil
}
