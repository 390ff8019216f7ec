package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"regportal/internal/model"
)

func (r *repository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `
		SELECT id, username, password_hash, role
		FROM users
		WHERE username = $1
	`
	var u model.User
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// CreateUserIfMissing inserts u unless a user with the same username exists.
// It reports whether a row was inserted.
func (r *repository) CreateUserIfMissing(ctx context.Context, u *model.User) (bool, error) {
	query := `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (username) DO NOTHING
		RETURNING id
	`
	if err := r.db.Master.QueryRowContext(ctx, query, u.Username, u.PasswordHash, u.Role).Scan(&u.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create user: %w", err)
	}
	return true, nil
}
