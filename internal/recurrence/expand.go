package recurrence

import (
	"iter"
	"time"

	"github.com/teambition/rrule-go"

	appLog "joyous/internal/log"
)

const day = 24 * time.Hour

// rruleDays maps time.Weekday (Sunday = 0) onto rrule-go weekdays.
var rruleDays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

var rruleFreqs = map[Frequency]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

func toRRuleWeekday(w Weekday) rrule.Weekday {
	d := rruleDays[w.Day]
	if w.N == 0 {
		return d
	}
	return d.Nth(w.N)
}

func fromRRuleWeekday(w rrule.Weekday) Weekday {
	// rrule-go counts from Monday = 0.
	return Weekday{Day: time.Weekday((w.Day() + 1) % 7), N: w.N()}
}

// options converts the rule into rrule-go options anchored at midnight UTC.
func (r Rule) options() rrule.ROption {
	opt := rrule.ROption{
		Freq:     rruleFreqs[r.Freq],
		Dtstart:  DateOf(r.Start),
		Interval: r.Interval,
		Wkst:     rruleDays[r.WeekStart],
		Count:    r.Count,
	}
	if !r.Until.IsZero() {
		opt.Until = DateOf(r.Until)
	}
	for _, w := range r.ByWeekday {
		opt.Byweekday = append(opt.Byweekday, toRRuleWeekday(w))
	}
	opt.Bymonthday = append(opt.Bymonthday, r.ByMonthDay...)
	for _, m := range r.ByMonth {
		opt.Bymonth = append(opt.Bymonth, int(m))
	}
	return opt
}

// set builds a fresh rrule-go set for one traversal.
func (r Rule) set() (*rrule.Set, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rr, err := rrule.NewRRule(r.options())
	if err != nil {
		return nil, err
	}
	set := &rrule.Set{}
	set.RRule(rr)
	for _, ex := range r.ExDates {
		set.ExDate(DateOf(ex))
	}
	return set, nil
}

// Expand yields the occurrence dates whose day intersects [from, to), in
// ascending order. Each range over the sequence starts a new traversal, so
// the sequence may be reused and shared between goroutines.
func (r Rule) Expand(from, to time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if !from.Before(to) {
			return
		}
		set, err := r.set()
		if err != nil {
			appLog.Error("recurrence: cannot expand rule", err, "rule", r.RRULE())
			return
		}
		next := set.Iterator()
		for {
			d, ok := next()
			if !ok || !d.Before(to) {
				return
			}
			if !d.Add(day).After(from) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// First returns the earliest occurrence of the rule.
func (r Rule) First() (time.Time, bool) {
	set, err := r.set()
	if err != nil {
		return time.Time{}, false
	}
	return set.Iterator()()
}

// Last returns the final occurrence of a bounded rule. Unbounded rules
// report false.
func (r Rule) Last() (time.Time, bool) {
	if r.Until.IsZero() && r.Count == 0 {
		return time.Time{}, false
	}
	set, err := r.set()
	if err != nil {
		return time.Time{}, false
	}
	var last time.Time
	found := false
	next := set.Iterator()
	for d, ok := next(); ok; d, ok = next() {
		last, found = d, true
	}
	return last, found
}

// Occurs reports whether date is an occurrence of the rule.
func (r Rule) Occurs(date time.Time) bool {
	d := DateOf(date)
	for occ := range r.Expand(d, d.Add(day)) {
		if occ.Equal(d) {
			return true
		}
	}
	return false
}
