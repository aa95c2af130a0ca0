package model

import (
	"fmt"
	"time"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour, Minute, Second int
}

// At returns a pointer to the clock h:m, for optional time fields.
func At(h, m int) *Clock {
	return &Clock{Hour: h, Minute: m}
}

// ClockOf returns the wall-clock time of t.
func ClockOf(t time.Time) *Clock {
	return &Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// ParseClock reads "15:04" or "15:04:05".
func ParseClock(s string) (*Clock, error) {
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	return nil, fmt.Errorf("bad time of day %q", s)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// On places the clock on the given civil date in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, loc)
}

// EndOfDay is used for timed events that have no end time.
var EndOfDay = Clock{Hour: 23, Minute: 59, Second: 59}
