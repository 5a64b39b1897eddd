package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"timelock-backend/internal/models"
)

type sqliteMessageRepository struct {
	q sqlQuerier
}

func (r *sqliteMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `INSERT INTO messages (` + messageColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content,
		msg.UnlockDate.String(), msg.Opened, formatSQLiteTime(msg.CreatedAt),
	)
	if err != nil {
		if isSQLiteForeignKeyViolation(err) {
			return models.ErrUserNotFound
		}
		return sqliteError("create message", err, nil)
	}
	return nil
}

func (r *sqliteMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	msg, err := scanSQLiteMessage(row)
	if err != nil {
		return nil, sqliteError("get message", err, models.ErrMessageNotFound)
	}
	return msg, nil
}

func (r *sqliteMessageRepository) GetEarliestDue(ctx context.Context, receiverID string, today models.Date) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE receiver = ? AND unlock_date <= ? AND opened = 0
		ORDER BY unlock_date ASC, created_at ASC
		LIMIT 1
	`
	msg, err := scanSQLiteMessage(r.q.QueryRowContext(ctx, query, receiverID, today.String()))
	if err != nil {
		return nil, sqliteError("get todays message", err, models.ErrMessageNotFound)
	}
	return msg, nil
}

func (r *sqliteMessageRepository) ListByUser(ctx context.Context, userID string) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE sender = ? OR receiver = ?
		ORDER BY unlock_date DESC, created_at DESC
	`
	rows, err := r.q.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, sqliteError("get messages", err, nil)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, sqliteError("scan message", err, nil)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("iterate messages", err, nil)
	}
	return messages, nil
}

func (r *sqliteMessageRepository) ListUnlockDates(ctx context.Context, senderID, receiverID string) ([]models.Date, error) {
	query := `SELECT unlock_date FROM messages WHERE sender = ? AND receiver = ? ORDER BY unlock_date`
	rows, err := r.q.QueryContext(ctx, query, senderID, receiverID)
	if err != nil {
		return nil, sqliteError("get message dates", err, nil)
	}
	defer rows.Close()

	var dates []models.Date
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, sqliteError("scan message date", err, nil)
		}
		day, err := parseSQLiteDate(raw)
		if err != nil {
			return nil, sqliteError("parse message date", err, nil)
		}
		dates = append(dates, day)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("iterate message dates", err, nil)
	}
	return dates, nil
}

func (r *sqliteMessageRepository) MarkOpened(ctx context.Context, id string) (bool, error) {
	result, err := r.q.ExecContext(ctx, `UPDATE messages SET opened = 1 WHERE id = ? AND opened = 0`, id)
	if err != nil {
		return false, sqliteError("mark message opened", err, nil)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, sqliteError("mark message opened", err, nil)
	}
	return n > 0, nil
}

func (r *sqliteMessageRepository) SendersBetween(ctx context.Context, userA, userB string, from, to time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT sender
		FROM messages
		WHERE ((sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?))
		  AND created_at >= ? AND created_at < ?
	`
	rows, err := r.q.QueryContext(ctx, query,
		userA, userB, userB, userA, formatSQLiteTime(from), formatSQLiteTime(to),
	)
	if err != nil {
		return nil, sqliteError("get senders", err, nil)
	}
	defer rows.Close()

	var senders []string
	for rows.Next() {
		var sender string
		if err := rows.Scan(&sender); err != nil {
			return nil, sqliteError("scan sender", err, nil)
		}
		senders = append(senders, sender)
	}
	if err := rows.Err(); err != nil {
		return nil, sqliteError("iterate senders", err, nil)
	}
	return senders, nil
}

func (r *sqliteMessageRepository) CountBetween(ctx context.Context, userA, userB string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?)
	`
	var total int
	if err := r.q.QueryRowContext(ctx, query, userA, userB, userB, userA).Scan(&total); err != nil {
		return 0, models.Unavailable(fmt.Errorf("failed to count messages: %w", err))
	}
	return total, nil
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteMessage(row sqlScanner) (*models.Message, error) {
	var (
		msg               models.Message
		unlock, createdAt string
		opened            sql.NullBool
	)
	if err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &unlock, &opened, &createdAt); err != nil {
		return nil, err
	}
	day, err := parseSQLiteDate(unlock)
	if err != nil {
		return nil, err
	}
	msg.UnlockDate = day
	msg.Opened = opened.Valid && opened.Bool
	if msg.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	return &msg, nil
}
