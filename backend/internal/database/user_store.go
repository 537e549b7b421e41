package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/user/cryptodemo/backend/internal/models"
)

// CreateUser inserts a new user together with a wallet funded with balance.
// Both rows are written in one transaction.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, balance decimal.Decimal, currency string) (*models.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create user %s: %w", username, err)
	}
	defer tx.Rollback(ctx)

	user := &models.User{
		Username: username,
		Password: passwordHash, // This is the hash
	}
	query := `INSERT INTO users (username, password_hash) VALUES ($1, $2)
			  RETURNING id, created_at`

	err = tx.QueryRow(ctx, query, username, passwordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("error creating user %s: %w", username, err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO wallets (user_id, balance, currency) VALUES ($1, $2, $3)`,
		user.ID, balance.String(), currency)
	if err != nil {
		return nil, fmt.Errorf("error creating wallet for user %s: %w", user.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create user %s: %w", username, err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by their username.
// Returns nil, nil if the user doesn't exist.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username)
}

// GetUserByID retrieves a user by their ID.
// Returns nil, nil if the user doesn't exist.
func (s *Store) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = $1`, userID)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.Password, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // User not found, return nil without error
		}
		return nil, fmt.Errorf("error getting user %v: %w", arg, err)
	}
	return user, nil
}
