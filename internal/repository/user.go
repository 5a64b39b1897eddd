package repository

import (
	"context"
	"fmt"

	"timelock-backend/internal/models"
)

type pgUserRepository struct {
	q pgQuerier
}

// Create creates a new user
func (r *pgUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, code, created_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.q.Exec(ctx, query, user.ID, user.Code, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrCodeTaken
		}
		return pgError("create user", err, nil)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *pgUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, code, created_at
		FROM users
		WHERE id = $1
	`
	var user models.User
	err := r.q.QueryRow(ctx, query, id).Scan(&user.ID, &user.Code, &user.CreatedAt)
	if err != nil {
		return nil, pgError("get user", err, models.ErrUserNotFound)
	}
	return &user, nil
}

// GetByCode retrieves a user by pairing code
func (r *pgUserRepository) GetByCode(ctx context.Context, code string) (*models.User, error) {
	query := `
		SELECT id, code, created_at
		FROM users
		WHERE code = $1
	`
	var user models.User
	err := r.q.QueryRow(ctx, query, code).Scan(&user.ID, &user.Code, &user.CreatedAt)
	if err != nil {
		return nil, pgError("get user by code", err, models.ErrUserNotFound)
	}
	return &user, nil
}

// CodeExists checks if a pairing code already exists
func (r *pgUserRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE code = $1)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, models.Unavailable(fmt.Errorf("failed to check code existence: %w", err))
	}
	return exists, nil
}
