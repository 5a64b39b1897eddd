package repository

import (
	"context"
	"fmt"
	"time"

	"timelock-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

const messageColumns = `id, sender, receiver, content, unlock_date, opened, created_at`

type pgMessageRepository struct {
	q pgQuerier
}

// Create creates a new message
func (r *pgMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7)
	`
	_, err := r.q.Exec(ctx, query,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Content,
		msg.UnlockDate.String(), msg.Opened, msg.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.ErrUserNotFound
		}
		return pgError("create message", err, nil)
	}
	return nil
}

// GetByID retrieves a message by ID
func (r *pgMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanPgMessage(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, pgError("get message", err, models.ErrMessageNotFound)
	}
	return msg, nil
}

// GetEarliestDue retrieves the earliest unlockable, unopened message for a receiver
func (r *pgMessageRepository) GetEarliestDue(ctx context.Context, receiverID string, today models.Date) (*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE receiver = $1 AND unlock_date <= $2::date AND NOT opened
		ORDER BY unlock_date ASC, created_at ASC
		LIMIT 1
	`
	msg, err := scanPgMessage(r.q.QueryRow(ctx, query, receiverID, today.String()))
	if err != nil {
		return nil, pgError("get todays message", err, models.ErrMessageNotFound)
	}
	return msg, nil
}

// ListByUser retrieves all messages sent or received by a user, latest unlock date first
func (r *pgMessageRepository) ListByUser(ctx context.Context, userID string) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE sender = $1 OR receiver = $1
		ORDER BY unlock_date DESC, created_at DESC
	`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, pgError("get messages", err, nil)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanPgMessage(rows)
		if err != nil {
			return nil, pgError("scan message", err, nil)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("iterate messages", err, nil)
	}
	return messages, nil
}

// ListUnlockDates retrieves the unlock dates already used by a sender for a receiver
func (r *pgMessageRepository) ListUnlockDates(ctx context.Context, senderID, receiverID string) ([]models.Date, error) {
	query := `
		SELECT unlock_date
		FROM messages
		WHERE sender = $1 AND receiver = $2
		ORDER BY unlock_date
	`
	rows, err := r.q.Query(ctx, query, senderID, receiverID)
	if err != nil {
		return nil, pgError("get message dates", err, nil)
	}
	defer rows.Close()

	var dates []models.Date
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, pgError("scan message date", err, nil)
		}
		dates = append(dates, models.DateOf(day.UTC()))
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("iterate message dates", err, nil)
	}
	return dates, nil
}

// MarkOpened marks a message as opened
func (r *pgMessageRepository) MarkOpened(ctx context.Context, id string) (bool, error) {
	query := `UPDATE messages SET opened = TRUE WHERE id = $1 AND NOT opened`
	result, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return false, pgError("mark message opened", err, nil)
	}
	return result.RowsAffected() > 0, nil
}

// SendersBetween retrieves who sent messages between two users in a time range
func (r *pgMessageRepository) SendersBetween(ctx context.Context, userA, userB string, from, to time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT sender
		FROM messages
		WHERE ((sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1))
		  AND created_at >= $3 AND created_at < $4
	`
	rows, err := r.q.Query(ctx, query, userA, userB, from, to)
	if err != nil {
		return nil, pgError("get senders", err, nil)
	}
	defer rows.Close()

	var senders []string
	for rows.Next() {
		var sender string
		if err := rows.Scan(&sender); err != nil {
			return nil, pgError("scan sender", err, nil)
		}
		senders = append(senders, sender)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("iterate senders", err, nil)
	}
	return senders, nil
}

// CountBetween counts the messages exchanged between two users in either direction
func (r *pgMessageRepository) CountBetween(ctx context.Context, userA, userB string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE (sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1)
	`
	var total int
	if err := r.q.QueryRow(ctx, query, userA, userB).Scan(&total); err != nil {
		return 0, models.Unavailable(fmt.Errorf("failed to count messages: %w", err))
	}
	return total, nil
}

func scanPgMessage(row pgx.Row) (*models.Message, error) {
	var (
		msg    models.Message
		unlock time.Time
	)
	err := row.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &unlock, &msg.Opened, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	msg.UnlockDate = models.DateOf(unlock.UTC())
	return &msg, nil
}
