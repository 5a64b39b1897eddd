package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"timelock-backend/internal/models"
	"timelock-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MessageService handles sealed messages between partners
type MessageService struct {
	store        repository.Store
	cal          *Calendar
	streaks      *StreakCalculator
	partnerships *PartnershipService
	cache        StatsCache
	events       EventPublisher
	maxLength    int
}

// NewMessageService creates a new message service. maxLength bounds the
// content in characters; 0 disables the bound.
func NewMessageService(
	store repository.Store,
	cal *Calendar,
	streaks *StreakCalculator,
	partnerships *PartnershipService,
	cache StatsCache,
	events EventPublisher,
	maxLength int,
) *MessageService {
	if cache == nil {
		cache = NopStatsCache{}
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &MessageService{
		store:        store,
		cal:          cal,
		streaks:      streaks,
		partnerships: partnerships,
		cache:        cache,
		events:       events,
		maxLength:    maxLength,
	}
}

// CreateMessage seals content from senderID to receiverID until unlockDate and
// updates the streak of their partnership
func (s *MessageService) CreateMessage(ctx context.Context, senderID, receiverID, content string, unlockDate models.Date) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.ErrEmptyContent
	}
	if s.maxLength > 0 && utf8.RuneCountInString(content) > s.maxLength {
		return nil, models.ErrContentTooLong
	}
	if unlockDate.Before(s.cal.Today()) {
		return nil, models.ErrUnlockDateInPast
	}

	msg := &models.Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		UnlockDate: unlockDate,
		CreatedAt:  s.cal.Now().UTC(),
	}

	var (
		partnership *models.Partnership
		streak      StreakResult
	)
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		p, err := lockPartnershipBetween(ctx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if err := tx.Messages().Create(ctx, msg); err != nil {
			return err
		}
		if streak, err = s.streaks.Record(ctx, tx, p, senderID, receiverID); err != nil {
			return err
		}
		partnership = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	log.Info().
		Str("message_id", msg.ID).
		Str("sender", senderID).
		Str("unlock_date", unlockDate.String()).
		Int("streak", streak.Streak).
		Msg("Message created")

	invalidateStats(ctx, s.cache, partnership.ID)
	publish(ctx, s.events, Event{
		Type:          EventMessageCreated,
		PartnershipID: partnership.ID,
		ActorID:       senderID,
		PartnerID:     receiverID,
		MessageID:     msg.ID,
		UnlockDate:    &msg.UnlockDate,
		OccurredAt:    msg.CreatedAt,
	})
	if streak.Changed {
		publish(ctx, s.events, Event{
			Type:          EventStreakUpdated,
			PartnershipID: partnership.ID,
			ActorID:       senderID,
			PartnerID:     receiverID,
			Streak:        &streak.Streak,
			OccurredAt:    msg.CreatedAt,
		})
	}

	return msg, nil
}

// SendToPartner creates a message addressed to senderID's partner
func (s *MessageService) SendToPartner(ctx context.Context, senderID, content string, unlockDate models.Date) (*models.Message, error) {
	partnerID, err := s.requirePartner(ctx, senderID)
	if err != nil {
		return nil, err
	}
	return s.CreateMessage(ctx, senderID, partnerID, content, unlockDate)
}

// GetTodaysMessage returns the earliest due message userID has not opened yet, or nil
func (s *MessageService) GetTodaysMessage(ctx context.Context, userID string) (*models.Message, error) {
	msg, err := s.store.Messages().GetEarliestDue(ctx, userID, s.cal.Today())
	if errors.Is(err, models.ErrMessageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todays message: %w", err)
	}
	return msg, nil
}

// GetUserMessages returns every message sent or received by userID as seen by
// userID, latest unlock date first
func (s *MessageService) GetUserMessages(ctx context.Context, userID string) ([]models.MessageView, error) {
	messages, err := s.store.Messages().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	today := s.cal.Today()
	views := make([]models.MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, msg.ViewFor(userID, today))
	}
	return views, nil
}

// GetMessageDatesForSender returns the unlock dates senderID already used for receiverID
func (s *MessageService) GetMessageDatesForSender(ctx context.Context, senderID, receiverID string) ([]models.Date, error) {
	dates, err := s.store.Messages().ListUnlockDates(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message dates: %w", err)
	}
	if dates == nil {
		dates = []models.Date{}
	}
	return dates, nil
}

// GetPartnerMessageDates returns the unlock dates senderID already used for their partner
func (s *MessageService) GetPartnerMessageDates(ctx context.Context, senderID string) ([]models.Date, error) {
	partnerID, err := s.requirePartner(ctx, senderID)
	if err != nil {
		return nil, err
	}
	return s.GetMessageDatesForSender(ctx, senderID, partnerID)
}

// MarkAsOpened opens an unlocked message addressed to userID. Opening an
// already opened message succeeds without change.
func (s *MessageService) MarkAsOpened(ctx context.Context, userID, messageID string) (*models.Message, error) {
	msg, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if msg.ReceiverID != userID {
		return nil, models.ErrNotReceiver
	}
	if msg.Opened {
		return msg, nil
	}
	if msg.UnlockDate.After(s.cal.Today()) {
		return nil, models.ErrMessageLocked
	}

	opened, err := s.store.Messages().MarkOpened(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark message opened: %w", err)
	}
	msg.Opened = true

	if opened {
		log.Info().
			Str("message_id", msg.ID).
			Str("user_id", userID).
			Msg("Message opened")

		publish(ctx, s.events, Event{
			Type:       EventMessageOpened,
			ActorID:    userID,
			PartnerID:  msg.SenderID,
			MessageID:  msg.ID,
			UnlockDate: &msg.UnlockDate,
			OccurredAt: s.cal.Now(),
		})
	}
	return msg, nil
}

// GetMessage returns a message as seen by userID, who must be its sender or receiver
func (s *MessageService) GetMessage(ctx context.Context, userID, messageID string) (*models.MessageView, error) {
	msg, err := s.store.Messages().GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	if msg.SenderID != userID && msg.ReceiverID != userID {
		return nil, models.ErrNotOwner
	}
	view := msg.ViewFor(userID, s.cal.Today())
	return &view, nil
}

func (s *MessageService) requirePartner(ctx context.Context, userID string) (string, error) {
	partnerID, err := s.partnerships.GetPartnerID(ctx, userID)
	if err != nil {
		return "", err
	}
	if partnerID == "" {
		return "", models.ErrNoPartner
	}
	return partnerID, nil
}

// lockPartnershipBetween returns the accepted partnership of senderID and
// receiverID with its row locked for the rest of tx
func lockPartnershipBetween(ctx context.Context, tx repository.Store, senderID, receiverID string) (*models.Partnership, error) {
	p, err := tx.Partnerships().GetByUserID(ctx, senderID)
	if errors.Is(err, models.ErrPartnershipNotFound) {
		return nil, models.ErrNoPartner
	}
	if err != nil {
		return nil, err
	}

	p, err = tx.Partnerships().GetByIDForUpdate(ctx, p.ID)
	if errors.Is(err, models.ErrPartnershipNotFound) {
		return nil, models.ErrNoPartner
	}
	if err != nil {
		return nil, err
	}
	if !p.IsAccepted() || p.PartnerOf(senderID) != receiverID {
		return nil, models.ErrNoPartner
	}
	return p, nil
}
