// Package recurrence models repeat patterns of recurring events and expands
// them into occurrence dates.
package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// ErrInvalidRule is wrapped by every validation failure.
var ErrInvalidRule = errors.New("invalid recurrence rule")

// Frequency is the base period of a rule.
type Frequency int

const (
	Daily Frequency = iota + 1
	Weekly
	Monthly
	Yearly
)

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	case Yearly:
		return "YEARLY"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// Weekday is a by-weekday filter entry. N is the ordinal of the weekday
// within the period (2 = second, -1 = last); zero means every such weekday.
type Weekday struct {
	Day time.Weekday
	N   int
}

// On returns a filter matching every d in the period.
func On(d time.Weekday) Weekday {
	return Weekday{Day: d}
}

// Nth returns a filter matching the n-th d in the period.
func Nth(n int, d time.Weekday) Weekday {
	return Weekday{Day: d, N: n}
}

// Rule is a repeat pattern anchored on a start date. All dates are civil
// dates stored as midnight UTC; the zone an occurrence happens in belongs to
// the event, not the rule.
type Rule struct {
	Start      time.Time
	Freq       Frequency
	Interval   int
	ByWeekday  []Weekday
	ByMonthDay []int
	ByMonth    []time.Month
	WeekStart  time.Weekday
	Until      time.Time
	Count      int
	ExDates    []time.Time
}

// Option configures a Rule built by NewRule.
type Option func(*Rule)

func Interval(n int) Option {
	return func(r *Rule) { r.Interval = n }
}

func OnWeekdays(days ...Weekday) Option {
	return func(r *Rule) { r.ByWeekday = append(r.ByWeekday, days...) }
}

func OnMonthDays(days ...int) Option {
	return func(r *Rule) { r.ByMonthDay = append(r.ByMonthDay, days...) }
}

func InMonths(months ...time.Month) Option {
	return func(r *Rule) { r.ByMonth = append(r.ByMonth, months...) }
}

func WeekStart(d time.Weekday) Option {
	return func(r *Rule) { r.WeekStart = d }
}

func Until(d time.Time) Option {
	return func(r *Rule) { r.Until = DateOf(d) }
}

func Count(n int) Option {
	return func(r *Rule) { r.Count = n }
}

func Except(dates ...time.Time) Option {
	return func(r *Rule) {
		for _, d := range dates {
			r.ExDates = append(r.ExDates, DateOf(d))
		}
	}
}

// NewRule builds and validates a rule. Interval defaults to 1 and the week
// starts on Monday unless the options say otherwise.
func NewRule(start time.Time, freq Frequency, opts ...Option) (*Rule, error) {
	r := &Rule{
		Start:     DateOf(start),
		Freq:      freq,
		Interval:  1,
		WeekStart: time.Monday,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rule invariants.
func (r Rule) Validate() error {
	if r.Start.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidRule)
	}
	if r.Freq < Daily || r.Freq > Yearly {
		return fmt.Errorf("%w: unknown frequency %d", ErrInvalidRule, int(r.Freq))
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1, got %d", ErrInvalidRule, r.Interval)
	}
	for _, w := range r.ByWeekday {
		if w.Day < time.Sunday || w.Day > time.Saturday {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRule, int(w.Day))
		}
		if w.N < -5 || w.N > 5 {
			return fmt.Errorf("%w: weekday ordinal %d out of range [-5,5]", ErrInvalidRule, w.N)
		}
		if w.N != 0 && (r.Freq == Daily || r.Freq == Weekly) {
			return fmt.Errorf("%w: weekday ordinals need a monthly or yearly frequency", ErrInvalidRule)
		}
	}
	for _, d := range r.ByMonthDay {
		if d == 0 || d < -31 || d > 31 {
			return fmt.Errorf("%w: month day %d out of range", ErrInvalidRule, d)
		}
	}
	for _, m := range r.ByMonth {
		if m < time.January || m > time.December {
			return fmt.Errorf("%w: month %d out of range", ErrInvalidRule, int(m))
		}
	}
	if r.Count < 0 {
		return fmt.Errorf("%w: count must not be negative", ErrInvalidRule)
	}
	if !r.Until.IsZero() {
		if r.Count > 0 {
			return fmt.Errorf("%w: until and count are mutually exclusive", ErrInvalidRule)
		}
		if r.Until.Before(r.Start) {
			return fmt.Errorf("%w: until %s is before start %s", ErrInvalidRule,
				r.Until.Format(time.DateOnly), r.Start.Format(time.DateOnly))
		}
	}
	return nil
}

// normalize truncates dates and orders the exception dates so equal rules
// compare equal.
func (r *Rule) normalize() {
	r.Start = DateOf(r.Start)
	if !r.Until.IsZero() {
		r.Until = DateOf(r.Until)
	}
	if len(r.ExDates) > 0 {
		for i, d := range r.ExDates {
			r.ExDates[i] = DateOf(d)
		}
		slices.SortFunc(r.ExDates, func(a, b time.Time) int { return a.Compare(b) })
		r.ExDates = slices.CompactFunc(r.ExDates, func(a, b time.Time) bool { return a.Equal(b) })
	}
}

// WithExDates returns a copy of r with extra exception dates.
func (r Rule) WithExDates(dates ...time.Time) Rule {
	out := r
	out.ExDates = append(slices.Clone(r.ExDates), dates...)
	out.normalize()
	return out
}

// DateOf drops the time of day, keeping the wall-clock date of t.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
