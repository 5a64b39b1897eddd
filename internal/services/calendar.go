package services

import (
	"time"

	"timelock-backend/internal/models"
)

// Calendar resolves "now" and "today" in the store's time zone
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar creates a calendar for loc backed by the wall clock
func NewCalendar(loc *time.Location) *Calendar {
	return NewCalendarWithClock(loc, time.Now)
}

// NewCalendarWithClock creates a calendar for loc backed by now
func NewCalendarWithClock(loc *time.Location, now func() time.Time) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, now: now}
}

// Location returns the calendar's time zone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now returns the current time in the calendar's time zone
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current calendar date
func (c *Calendar) Today() models.Date {
	return models.DateOf(c.Now())
}

// DayBounds returns [start of d, start of the next day) in the calendar's time zone
func (c *Calendar) DayBounds(d models.Date) (time.Time, time.Time) {
	return d.In(c.loc), d.AddDays(1).In(c.loc)
}
