package service

import (
	"fmt"
	"time"
)

// DefaultTimezone matches the original integration's region. Override it via
// config for meters outside the UK.
const DefaultTimezone = "Europe/London"

// ResetClock yields the daily reset reference point for energy sensors:
// local midnight of the current day in a fixed timezone, DST-aware.
type ResetClock struct {
	loc *time.Location
	now func() time.Time
}

func NewResetClock(timezone string) (*ResetClock, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &ResetClock{loc: loc, now: time.Now}, nil
}

// LastReset returns midnight of "today" in the clock's timezone.
func (c *ResetClock) LastReset() time.Time {
	return MidnightOf(c.now(), c.loc)
}

// MidnightOf returns local midnight of the day containing t in loc. The
// result carries whatever UTC offset (DST included) the zone has on that day.
func MidnightOf(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
