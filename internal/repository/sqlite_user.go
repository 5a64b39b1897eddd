package repository

import (
	"context"
	"fmt"

	"timelock-backend/internal/models"
)

type sqliteUserRepository struct {
	q sqlQuerier
}

func (r *sqliteUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, code, created_at) VALUES (?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query, user.ID, user.Code, formatSQLiteTime(user.CreatedAt))
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return models.ErrCodeTaken
		}
		return sqliteError("create user", err, nil)
	}
	return nil
}

func (r *sqliteUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "get user", `SELECT id, code, created_at FROM users WHERE id = ?`, id)
}

func (r *sqliteUserRepository) GetByCode(ctx context.Context, code string) (*models.User, error) {
	return r.getOne(ctx, "get user by code", `SELECT id, code, created_at FROM users WHERE code = ?`, code)
}

func (r *sqliteUserRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE code = ?)`, code).Scan(&exists)
	if err != nil {
		return false, models.Unavailable(fmt.Errorf("failed to check code existence: %w", err))
	}
	return exists, nil
}

func (r *sqliteUserRepository) getOne(ctx context.Context, op, query string, args ...any) (*models.User, error) {
	var (
		user      models.User
		createdAt string
	)
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.Code, &createdAt)
	if err != nil {
		return nil, sqliteError(op, err, models.ErrUserNotFound)
	}
	if user.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, sqliteError(op, err, nil)
	}
	return &user, nil
}
