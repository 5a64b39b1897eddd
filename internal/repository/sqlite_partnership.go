package repository

import (
	"context"
	"database/sql"
	"fmt"

	"timelock-backend/internal/models"
)

type sqlitePartnershipRepository struct {
	store *SQLiteStore
}

func (r *sqlitePartnershipRepository) Create(ctx context.Context, p *models.Partnership) error {
	return r.store.InTx(ctx, func(tx Store) error {
		q := tx.(*SQLiteStore).q

		query := `INSERT INTO partnerships (` + partnershipColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := q.ExecContext(ctx, query,
			p.ID, p.UserAID, p.UserBID, string(p.Status),
			nullDateArg(p.RelationshipDate), p.CurrentStreak, nullDateArg(p.LastStreakDate),
			formatSQLiteTime(p.CreatedAt),
		)
		if err != nil {
			if isSQLiteForeignKeyViolation(err) {
				return models.ErrUserNotFound
			}
			return sqliteError("create partnership", err, nil)
		}

		member := `INSERT INTO partnership_members (user_id, partnership_id) VALUES (?, ?)`
		if _, err := q.ExecContext(ctx, member, p.UserAID, p.ID); err != nil {
			if isSQLiteUniqueViolation(err) {
				return models.ErrAlreadyPaired
			}
			return sqliteError("add requester to partnership", err, nil)
		}
		if _, err := q.ExecContext(ctx, member, p.UserBID, p.ID); err != nil {
			if isSQLiteUniqueViolation(err) {
				return models.ErrPartnerAlreadyPaired
			}
			return sqliteError("add recipient to partnership", err, nil)
		}
		return nil
	})
}

func (r *sqlitePartnershipRepository) GetByID(ctx context.Context, id string) (*models.Partnership, error) {
	return r.getOne(ctx, "get partnership", `SELECT `+partnershipColumns+` FROM partnerships WHERE id = ?`, id)
}

// GetByIDForUpdate needs no row lock: the single connection already
// serializes transactions.
func (r *sqlitePartnershipRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Partnership, error) {
	return r.GetByID(ctx, id)
}

func (r *sqlitePartnershipRepository) GetByUserID(ctx context.Context, userID string) (*models.Partnership, error) {
	query := `
		SELECT ` + partnershipColumns + `
		FROM partnerships
		WHERE id = (SELECT partnership_id FROM partnership_members WHERE user_id = ?)
	`
	return r.getOne(ctx, "get partnership by user id", query, userID)
}

func (r *sqlitePartnershipRepository) GetPendingByRecipient(ctx context.Context, userID string) (*models.Partnership, error) {
	query := `
		SELECT ` + partnershipColumns + `
		FROM partnerships
		WHERE user_b = ? AND status = 'pending'
		ORDER BY created_at
		LIMIT 1
	`
	return r.getOne(ctx, "get pending request", query, userID)
}

func (r *sqlitePartnershipRepository) GetPendingByRequester(ctx context.Context, userID string) (*models.Partnership, error) {
	query := `
		SELECT ` + partnershipColumns + `
		FROM partnerships
		WHERE user_a = ? AND status = 'pending'
		ORDER BY created_at
		LIMIT 1
	`
	return r.getOne(ctx, "get sent request", query, userID)
}

func (r *sqlitePartnershipRepository) UserHasPartnership(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.store.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM partnership_members WHERE user_id = ?)`, userID).Scan(&exists)
	if err != nil {
		return false, models.Unavailable(fmt.Errorf("failed to check if user has partnership: %w", err))
	}
	return exists, nil
}

func (r *sqlitePartnershipRepository) Accept(ctx context.Context, id, recipientID string, relationshipDate models.Date) error {
	query := `
		UPDATE partnerships
		SET status = 'accepted', relationship_date = ?
		WHERE id = ? AND user_b = ? AND status = 'pending'
	`
	result, err := r.store.q.ExecContext(ctx, query, relationshipDate.String(), id, recipientID)
	return checkAffected("accept partnership", result, err)
}

func (r *sqlitePartnershipRepository) Delete(ctx context.Context, id string) error {
	result, err := r.store.q.ExecContext(ctx, `DELETE FROM partnerships WHERE id = ?`, id)
	return checkAffected("delete partnership", result, err)
}

func (r *sqlitePartnershipRepository) UpdateStreak(ctx context.Context, id string, streak int, day models.Date) error {
	query := `UPDATE partnerships SET current_streak = ?, last_streak_date = ? WHERE id = ?`
	result, err := r.store.q.ExecContext(ctx, query, streak, day.String(), id)
	return checkAffected("update streak", result, err)
}

func (r *sqlitePartnershipRepository) getOne(ctx context.Context, op, query string, args ...any) (*models.Partnership, error) {
	var (
		p                         models.Partnership
		status, createdAt         string
		relationshipDate, lastDay sql.NullString
	)
	err := r.store.q.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.UserAID, &p.UserBID, &status,
		&relationshipDate, &p.CurrentStreak, &lastDay, &createdAt,
	)
	if err != nil {
		return nil, sqliteError(op, err, models.ErrPartnershipNotFound)
	}

	p.Status = models.PartnershipStatus(status)
	if p.RelationshipDate, err = parseNullDate(relationshipDate); err != nil {
		return nil, sqliteError(op, err, nil)
	}
	if p.LastStreakDate, err = parseNullDate(lastDay); err != nil {
		return nil, sqliteError(op, err, nil)
	}
	if p.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, sqliteError(op, err, nil)
	}
	return &p, nil
}

// checkAffected maps a write that touched no partnership row to ErrPartnershipNotFound
func checkAffected(op string, result sql.Result, err error) error {
	if err != nil {
		return sqliteError(op, err, nil)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return sqliteError(op, err, nil)
	}
	if n == 0 {
		return models.ErrPartnershipNotFound
	}
	return nil
}
