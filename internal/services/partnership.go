package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"timelock-backend/internal/models"
	"timelock-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PartnershipService handles the pairing lifecycle of users
type PartnershipService struct {
	store  repository.Store
	cal    *Calendar
	cache  StatsCache
	events EventPublisher
}

// NewPartnershipService creates a new partnership service
func NewPartnershipService(store repository.Store, cal *Calendar, cache StatsCache, events EventPublisher) *PartnershipService {
	if cache == nil {
		cache = NopStatsCache{}
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &PartnershipService{
		store:  store,
		cal:    cal,
		cache:  cache,
		events: events,
	}
}

// SendRequest creates a pending partnership from fromUser to toUser
func (s *PartnershipService) SendRequest(ctx context.Context, fromUser, toUser string) (*models.Partnership, error) {
	if fromUser == toUser {
		return nil, models.ErrSelfPair
	}

	if _, err := s.store.Users().GetByID(ctx, toUser); err != nil {
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}

	hasPartnership, err := s.store.Partnerships().UserHasPartnership(ctx, fromUser)
	if err != nil {
		return nil, fmt.Errorf("failed to check if user has partnership: %w", err)
	}
	if hasPartnership {
		return nil, models.ErrAlreadyPaired
	}

	hasPartnership, err = s.store.Partnerships().UserHasPartnership(ctx, toUser)
	if err != nil {
		return nil, fmt.Errorf("failed to check if partner has partnership: %w", err)
	}
	if hasPartnership {
		return nil, models.ErrPartnerAlreadyPaired
	}

	p := &models.Partnership{
		ID:        uuid.New().String(),
		UserAID:   fromUser,
		UserBID:   toUser,
		Status:    models.StatusPending,
		CreatedAt: s.cal.Now().UTC(),
	}

	// The membership rows catch a request racing past the checks above.
	if err := s.store.Partnerships().Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create partnership: %w", err)
	}

	log.Info().
		Str("partnership_id", p.ID).
		Str("user_a", fromUser).
		Str("user_b", toUser).
		Msg("Partnership requested")

	publish(ctx, s.events, Event{
		Type:          EventPartnershipRequested,
		PartnershipID: p.ID,
		ActorID:       fromUser,
		PartnerID:     toUser,
		OccurredAt:    p.CreatedAt,
	})

	return p, nil
}

// SendRequestByCode resolves the partner by pairing code and sends a request
func (s *PartnershipService) SendRequestByCode(ctx context.Context, fromUser, code string) (*models.Partnership, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != codeLength {
		return nil, models.ErrInvalidCode
	}

	partner, err := s.store.Users().GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get partner by code: %w", err)
	}

	return s.SendRequest(ctx, fromUser, partner.ID)
}

// GetPendingRequest returns the pending request addressed to userID, or nil
func (s *PartnershipService) GetPendingRequest(ctx context.Context, userID string) (*models.Partnership, error) {
	p, err := s.store.Partnerships().GetPendingByRecipient(ctx, userID)
	if errors.Is(err, models.ErrPartnershipNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending request: %w", err)
	}
	return p, nil
}

// GetSentRequest returns the pending request sent by userID, or nil
func (s *PartnershipService) GetSentRequest(ctx context.Context, userID string) (*models.Partnership, error) {
	p, err := s.store.Partnerships().GetPendingByRequester(ctx, userID)
	if errors.Is(err, models.ErrPartnershipNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sent request: %w", err)
	}
	return p, nil
}

// AcceptRequest accepts a pending request addressed to userID and fixes the
// relationship date
func (s *PartnershipService) AcceptRequest(ctx context.Context, userID, partnershipID string, relationshipDate models.Date) (*models.Partnership, error) {
	var accepted *models.Partnership
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		p, err := tx.Partnerships().GetByIDForUpdate(ctx, partnershipID)
		if err != nil {
			return err
		}
		if p.UserBID != userID {
			return models.ErrUnauthorized
		}
		if p.Status != models.StatusPending {
			return models.ErrAlreadyAccepted
		}
		if relationshipDate.After(s.cal.Today()) {
			return models.ErrFutureDate
		}

		if err := tx.Partnerships().Accept(ctx, p.ID, userID, relationshipDate); err != nil {
			return err
		}
		p.Status = models.StatusAccepted
		p.RelationshipDate = &relationshipDate
		accepted = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to accept partnership: %w", err)
	}

	log.Info().
		Str("partnership_id", accepted.ID).
		Str("user_id", userID).
		Str("relationship_date", relationshipDate.String()).
		Msg("Partnership accepted")

	invalidateStats(ctx, s.cache, accepted.ID)
	publish(ctx, s.events, Event{
		Type:          EventPartnershipAccepted,
		PartnershipID: accepted.ID,
		ActorID:       userID,
		PartnerID:     accepted.UserAID,
		OccurredAt:    s.cal.Now(),
	})

	return accepted, nil
}

// CancelRequest deletes a pending request. The requester cancels it, the
// recipient declines it.
func (s *PartnershipService) CancelRequest(ctx context.Context, userID, partnershipID string) error {
	var cancelled *models.Partnership
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		p, err := tx.Partnerships().GetByIDForUpdate(ctx, partnershipID)
		if err != nil {
			return err
		}
		if !p.HasMember(userID) {
			return models.ErrNotMember
		}
		if p.IsAccepted() {
			return models.ErrAlreadyAccepted
		}
		if err := tx.Partnerships().Delete(ctx, p.ID); err != nil {
			return err
		}
		cancelled = p
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel partnership: %w", err)
	}

	log.Info().
		Str("partnership_id", cancelled.ID).
		Str("user_id", userID).
		Msg("Partnership request cancelled")

	publish(ctx, s.events, Event{
		Type:          EventPartnershipCancelled,
		PartnershipID: cancelled.ID,
		ActorID:       userID,
		PartnerID:     cancelled.PartnerOf(userID),
		OccurredAt:    s.cal.Now(),
	})

	return nil
}

// GetPartnerID returns the partner of userID, or "" unless the partnership is accepted
func (s *PartnershipService) GetPartnerID(ctx context.Context, userID string) (string, error) {
	p, err := s.acceptedPartnership(ctx, userID)
	if err != nil || p == nil {
		return "", err
	}
	return p.PartnerOf(userID), nil
}

// GetPairingState returns where userID stands in the pairing lifecycle
func (s *PartnershipService) GetPairingState(ctx context.Context, userID string) (*models.Pairing, error) {
	p, err := s.store.Partnerships().GetByUserID(ctx, userID)
	if errors.Is(err, models.ErrPartnershipNotFound) {
		return &models.Pairing{State: models.StateUnpaired}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get partnership: %w", err)
	}

	pairing := &models.Pairing{Partnership: p}
	switch {
	case p.IsAccepted():
		pairing.State = models.StatePaired
		pairing.PartnerID = p.PartnerOf(userID)
	case p.UserAID == userID:
		pairing.State = models.StateRequestSent
	default:
		pairing.State = models.StateRequestReceived
	}
	return pairing, nil
}

// GetRelationshipStats returns the stats of userID's accepted partnership,
// or zero stats when unpaired
func (s *PartnershipService) GetRelationshipStats(ctx context.Context, userID string) (*models.RelationshipStats, error) {
	p, err := s.acceptedPartnership(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &models.RelationshipStats{}, nil
	}

	cached, gen, ok, err := s.cache.Get(ctx, p.ID)
	cacheable := err == nil
	if err != nil {
		log.Warn().Err(err).Str("partnership_id", p.ID).Msg("Failed to read stats cache")
	} else if ok {
		return cached, nil
	}

	stats, err := s.loadStats(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.cache.Set(ctx, p.ID, gen, stats); err != nil {
			log.Warn().Err(err).Str("partnership_id", p.ID).Msg("Failed to write stats cache")
		}
	}
	return stats, nil
}

// loadStats reads the partnership row and its message count in one
// transaction. It must run after the cache generation was read so that a
// write committed in between makes the following Set a no-op.
func (s *PartnershipService) loadStats(ctx context.Context, partnershipID string) (*models.RelationshipStats, error) {
	var stats *models.RelationshipStats
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		p, err := tx.Partnerships().GetByID(ctx, partnershipID)
		if err != nil {
			return err
		}
		total, err := tx.Messages().CountBetween(ctx, p.UserAID, p.UserBID)
		if err != nil {
			return err
		}
		stats = &models.RelationshipStats{
			TotalMessages:    total,
			CurrentStreak:    p.CurrentStreak,
			RelationshipDate: p.RelationshipDate,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// DaysTogether returns the whole days elapsed since the relationship date of stats
func (s *PartnershipService) DaysTogether(stats *models.RelationshipStats) int {
	return DaysTogether(stats.RelationshipDate, s.cal.Today())
}

// DaysTogether returns the whole days from relationshipDate to today, 0 when unset
func DaysTogether(relationshipDate *models.Date, today models.Date) int {
	if relationshipDate == nil {
		return 0
	}
	days := today.DaysSince(*relationshipDate)
	if days < 0 {
		return 0
	}
	return days
}

func (s *PartnershipService) acceptedPartnership(ctx context.Context, userID string) (*models.Partnership, error) {
	p, err := s.store.Partnerships().GetByUserID(ctx, userID)
	if errors.Is(err, models.ErrPartnershipNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get partnership: %w", err)
	}
	if !p.IsAccepted() {
		return nil, nil
	}
	return p, nil
}
