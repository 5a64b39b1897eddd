package services

import (
	"context"
	"time"

	"timelock-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Event types published after a successful write
const (
	EventPartnershipRequested = "partnership.requested"
	EventPartnershipAccepted  = "partnership.accepted"
	EventPartnershipCancelled = "partnership.cancelled"
	EventMessageCreated       = "message.created"
	EventMessageOpened        = "message.opened"
	EventStreakUpdated        = "streak.updated"
)

// Event is a domain event. Message content is never part of an event.
type Event struct {
	Type          string       `json:"type"`
	PartnershipID string       `json:"partnership_id,omitempty"`
	ActorID       string       `json:"actor_id,omitempty"`
	PartnerID     string       `json:"partner_id,omitempty"`
	MessageID     string       `json:"message_id,omitempty"`
	UnlockDate    *models.Date `json:"unlock_date,omitempty"`
	Streak        *int         `json:"streak,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

// EventPublisher delivers domain events to other services
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// StatsCache caches relationship stats per partnership.
//
// Every Invalidate advances the generation of a partnership. Get reports the
// current generation even on a miss, and Set stores stats only while the
// generation is still the one the caller read.
type StatsCache interface {
	Get(ctx context.Context, partnershipID string) (stats *models.RelationshipStats, gen uint64, ok bool, err error)
	Set(ctx context.Context, partnershipID string, gen uint64, stats *models.RelationshipStats) error
	Invalidate(ctx context.Context, partnershipID string) error
}

// NopPublisher drops every event
type NopPublisher struct{}

// Publish discards event
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// NopStatsCache never hits
type NopStatsCache struct{}

// Get always misses
func (NopStatsCache) Get(context.Context, string) (*models.RelationshipStats, uint64, bool, error) {
	return nil, 0, false, nil
}

// Set stores nothing
func (NopStatsCache) Set(context.Context, string, uint64, *models.RelationshipStats) error { return nil }

// Invalidate does nothing
func (NopStatsCache) Invalidate(context.Context, string) error { return nil }

// publish sends an event; the write it reports is already committed, so
// failures are only logged.
func publish(ctx context.Context, events EventPublisher, event Event) {
	if err := events.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("type", event.Type).
			Str("partnership_id", event.PartnershipID).
			Msg("Failed to publish event")
	}
}

// invalidateStats drops cached stats for a partnership
func invalidateStats(ctx context.Context, cache StatsCache, partnershipID string) {
	if err := cache.Invalidate(ctx, partnershipID); err != nil {
		log.Warn().
			Err(err).
			Str("partnership_id", partnershipID).
			Msg("Failed to invalidate stats cache")
	}
}
