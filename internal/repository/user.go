package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/ontology-api/internal/model"
	"github.com/deppfellow/ontology-api/internal/sqlerr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT username, uri, email, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.Username, &u.ID, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) GetUser(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx,
		`SELECT username, uri, email, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.Username, &u.ID, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sqlerr.NotFound("users")
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", username, err)
	}
	return &u, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, uri, email) VALUES ($1, $2, $3) RETURNING created_at`,
		u.Username, u.ID, u.Email,
	).Scan(&u.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating user %s: %w", u.Username, err)
	}
	return nil
}
