package domain

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var clockLayouts = []string{"15:04", "15:04:05"}

// ShowTime is a scheduled show window in absolute time.
type ShowTime struct {
	Start time.Time
	End   time.Time
}

// ParseSchedule combines a calendar date and two wall-clock times in loc.
// An end time at or before the start time means the show runs past midnight.
func ParseSchedule(date, start, end string, loc *time.Location) (ShowTime, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return ShowTime{}, fmt.Errorf("%w: date %q", ErrInvalidSchedule, date)
	}
	s, err := atClock(day, start)
	if err != nil {
		return ShowTime{}, err
	}
	e, err := atClock(day, end)
	if err != nil {
		return ShowTime{}, err
	}
	if !e.After(s) {
		e = e.AddDate(0, 0, 1)
	}
	return ShowTime{Start: s, End: e}, nil
}

func atClock(day time.Time, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, clock)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, day.Location()), nil
	}
	return time.Time{}, fmt.Errorf("%w: time %q", ErrInvalidSchedule, clock)
}

// Remaining is the time left until End, never negative.
func (s ShowTime) Remaining(now time.Time) time.Duration {
	if d := s.End.Sub(now); d > 0 {
		return d
	}
	return 0
}
