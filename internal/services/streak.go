package services

import (
	"context"
	"fmt"

	"timelock-backend/internal/models"
	"timelock-backend/internal/repository"
)

// NextStreak returns the streak after a day on which both partners sent
// (bothSent) or not. ok is false when the partnership must not be touched.
func NextStreak(current int, last *models.Date, today models.Date, bothSent bool) (streak int, day models.Date, ok bool) {
	if !bothSent {
		return current, models.Date{}, false
	}
	switch {
	case last != nil && *last == today.AddDays(-1):
		return current + 1, today, true
	case last != nil && *last == today:
		return current, today, true
	default:
		return 1, today, true
	}
}

// StreakResult is the outcome of recording a message for the streak
type StreakResult struct {
	Streak  int
	Updated bool
	Changed bool
}

// StreakCalculator maintains the mutual daily streak of a partnership
type StreakCalculator struct {
	cal *Calendar
}

// NewStreakCalculator creates a new streak calculator
func NewStreakCalculator(cal *Calendar) *StreakCalculator {
	return &StreakCalculator{cal: cal}
}

// Record recomputes the streak of p after userID sent a message to
// partnerID. tx must be the transaction holding the lock on p.
func (c *StreakCalculator) Record(ctx context.Context, tx repository.Store, p *models.Partnership, userID, partnerID string) (StreakResult, error) {
	today := c.cal.Today()
	from, to := c.cal.DayBounds(today)

	senders, err := tx.Messages().SendersBetween(ctx, userID, partnerID, from, to)
	if err != nil {
		return StreakResult{}, fmt.Errorf("failed to get todays senders: %w", err)
	}

	var userSent, partnerSent bool
	for _, sender := range senders {
		switch sender {
		case userID:
			userSent = true
		case partnerID:
			partnerSent = true
		}
	}

	streak, day, ok := NextStreak(p.CurrentStreak, p.LastStreakDate, today, userSent && partnerSent)
	if !ok {
		return StreakResult{Streak: p.CurrentStreak}, nil
	}

	if err := tx.Partnerships().UpdateStreak(ctx, p.ID, streak, day); err != nil {
		return StreakResult{}, fmt.Errorf("failed to update streak: %w", err)
	}

	changed := streak != p.CurrentStreak
	p.CurrentStreak = streak
	p.LastStreakDate = &day
	return StreakResult{Streak: streak, Updated: true, Changed: changed}, nil
}
