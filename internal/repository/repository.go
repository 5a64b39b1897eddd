package repository

import (
	"context"
	"time"

	"timelock-backend/internal/models"
)

// UserRepository handles persistence of users
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByCode(ctx context.Context, code string) (*models.User, error)
	CodeExists(ctx context.Context, code string) (bool, error)
}

// PartnershipRepository handles persistence of partnerships.
//
// Create registers both users as members in the same statement batch; a user
// that is already a member of another partnership makes Create fail with
// models.ErrAlreadyPaired (requester) or models.ErrPartnerAlreadyPaired (recipient).
type PartnershipRepository interface {
	Create(ctx context.Context, p *models.Partnership) error
	GetByID(ctx context.Context, id string) (*models.Partnership, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Partnership, error)
	// GetByUserID returns the partnership of a user regardless of its status.
	GetByUserID(ctx context.Context, userID string) (*models.Partnership, error)
	GetPendingByRecipient(ctx context.Context, userID string) (*models.Partnership, error)
	GetPendingByRequester(ctx context.Context, userID string) (*models.Partnership, error)
	UserHasPartnership(ctx context.Context, userID string) (bool, error)
	// Accept moves a pending partnership addressed to recipientID to accepted.
	Accept(ctx context.Context, id, recipientID string, relationshipDate models.Date) error
	Delete(ctx context.Context, id string) error
	UpdateStreak(ctx context.Context, id string, streak int, day models.Date) error
}

// MessageRepository handles persistence of messages
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// GetEarliestDue returns the unopened message for receiverID with the
	// earliest unlock date not after today.
	GetEarliestDue(ctx context.Context, receiverID string, today models.Date) (*models.Message, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Message, error)
	ListUnlockDates(ctx context.Context, senderID, receiverID string) ([]models.Date, error)
	// MarkOpened reports whether the message moved from unopened to opened.
	MarkOpened(ctx context.Context, id string) (bool, error)
	// SendersBetween returns the distinct senders of messages exchanged
	// between userA and userB created in [from, to).
	SendersBetween(ctx context.Context, userA, userB string, from, to time.Time) ([]string, error)
	CountBetween(ctx context.Context, userA, userB string) (int, error)
}

// Store groups the repositories of one backing database
type Store interface {
	Users() UserRepository
	Partnerships() PartnershipRepository
	Messages() MessageRepository
	// InTx runs fn with a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	// Calling InTx on a transactional Store runs fn in the same transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
	Close()
}
