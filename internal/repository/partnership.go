package repository

import (
	"context"
	"fmt"
	"time"

	"timelock-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const partnershipColumns = `id, user_a, user_b, status, relationship_date, current_streak, last_streak_date, created_at`

type pgPartnershipRepository struct {
	store *PostgresStore
}

// Create creates a new partnership and registers both users as members
func (r *pgPartnershipRepository) Create(ctx context.Context, p *models.Partnership) error {
	return r.store.InTx(ctx, func(tx Store) error {
		q := tx.(*PostgresStore).q

		query := `
			INSERT INTO partnerships (` + partnershipColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err := q.Exec(ctx, query,
			p.ID, p.UserAID, p.UserBID, string(p.Status),
			dateArg(p.RelationshipDate), p.CurrentStreak, dateArg(p.LastStreakDate), p.CreatedAt,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return models.ErrUserNotFound
			}
			return pgError("create partnership", err, nil)
		}

		member := `INSERT INTO partnership_members (user_id, partnership_id) VALUES ($1, $2)`
		if _, err := q.Exec(ctx, member, p.UserAID, p.ID); err != nil {
			if isUniqueViolation(err) {
				return models.ErrAlreadyPaired
			}
			return pgError("add requester to partnership", err, nil)
		}
		if _, err := q.Exec(ctx, member, p.UserBID, p.ID); err != nil {
			if isUniqueViolation(err) {
				return models.ErrPartnerAlreadyPaired
			}
			return pgError("add recipient to partnership", err, nil)
		}
		return nil
	})
}

// GetByID retrieves a partnership by ID
func (r *pgPartnershipRepository) GetByID(ctx context.Context, id string) (*models.Partnership, error) {
	query := `SELECT ` + partnershipColumns + ` FROM partnerships WHERE id = $1`
	return r.getOne(ctx, "get partnership", query, id)
}

// GetByIDForUpdate retrieves a partnership by ID and locks its row
func (r *pgPartnershipRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Partnership, error) {
	query := `SELECT ` + partnershipColumns + ` FROM partnerships WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, "lock partnership", query, id)
}

// GetByUserID retrieves the partnership a user belongs to
func (r *pgPartnershipRepository) GetByUserID(ctx context.Context, userID string) (*models.Partnership, error) {
	query := `
		SELECT ` + partnershipColumns + `
		FROM partnerships
		WHERE id = (SELECT partnership_id FROM partnership_members WHERE user_id = $1)
	`
	return r.getOne(ctx, "get partnership by user id", query, userID)
}

// GetPendingByRecipient retrieves the pending request addressed to a user
func (r *pgPartnershipRepository) GetPendingByRecipient(ctx context.Context, userID string) (*models.Partnership, error) {
	query := `
		SELECT ` + partnershipColumns + `
		FROM partnerships
		WHERE user_b = $1 AND status = 'pending'
		ORDER BY created_at
		LIMIT 1
	`
	return r.getOne(ctx, "get pending request", query, userID)
}

// GetPendingByRequester retrieves the pending request sent by a user
func (r *pgPartnershipRepository) GetPendingByRequester(ctx context.Context, userID string) (*models.Partnership, error) {
	query := `
		SELECT ` + partnershipColumns + `
		FROM partnerships
		WHERE user_a = $1 AND status = 'pending'
		ORDER BY created_at
		LIMIT 1
	`
	return r.getOne(ctx, "get sent request", query, userID)
}

// UserHasPartnership checks if a user already belongs to a partnership
func (r *pgPartnershipRepository) UserHasPartnership(ctx context.Context, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM partnership_members WHERE user_id = $1)`
	var exists bool
	if err := r.store.q.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, models.Unavailable(fmt.Errorf("failed to check if user has partnership: %w", err))
	}
	return exists, nil
}

// Accept accepts a pending partnership on behalf of its recipient
func (r *pgPartnershipRepository) Accept(ctx context.Context, id, recipientID string, relationshipDate models.Date) error {
	query := `
		UPDATE partnerships
		SET status = 'accepted', relationship_date = $3::date
		WHERE id = $1 AND user_b = $2 AND status = 'pending'
	`
	result, err := r.store.q.Exec(ctx, query, id, recipientID, relationshipDate.String())
	if err != nil {
		return pgError("accept partnership", err, nil)
	}
	if result.RowsAffected() == 0 {
		return models.ErrPartnershipNotFound
	}
	return nil
}

// Delete deletes a partnership by ID; membership rows cascade
func (r *pgPartnershipRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM partnerships WHERE id = $1`
	result, err := r.store.q.Exec(ctx, query, id)
	if err != nil {
		return pgError("delete partnership", err, nil)
	}
	if result.RowsAffected() == 0 {
		return models.ErrPartnershipNotFound
	}
	return nil
}

// UpdateStreak stores the streak counter and the day it was last counted
func (r *pgPartnershipRepository) UpdateStreak(ctx context.Context, id string, streak int, day models.Date) error {
	query := `UPDATE partnerships SET current_streak = $2, last_streak_date = $3::date WHERE id = $1`
	result, err := r.store.q.Exec(ctx, query, id, streak, day.String())
	if err != nil {
		return pgError("update streak", err, nil)
	}
	if result.RowsAffected() == 0 {
		return models.ErrPartnershipNotFound
	}
	return nil
}

func (r *pgPartnershipRepository) getOne(ctx context.Context, op, query string, args ...any) (*models.Partnership, error) {
	p, err := scanPgPartnership(r.store.q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, pgError(op, err, models.ErrPartnershipNotFound)
	}
	return p, nil
}

func scanPgPartnership(row pgx.Row) (*models.Partnership, error) {
	var (
		p                         models.Partnership
		status                    string
		relationshipDate, lastDay *time.Time
	)
	err := row.Scan(
		&p.ID, &p.UserAID, &p.UserBID, &status,
		&relationshipDate, &p.CurrentStreak, &lastDay, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = models.PartnershipStatus(status)
	p.RelationshipDate = dateFromTime(relationshipDate)
	p.LastStreakDate = dateFromTime(lastDay)
	return &p, nil
}
