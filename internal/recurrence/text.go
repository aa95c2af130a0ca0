package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

const dateLayout = "20060102"

var weekdayTokens = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

func (w Weekday) String() string {
	if w.N == 0 {
		return weekdayTokens[w.Day]
	}
	return strconv.Itoa(w.N) + weekdayTokens[w.Day]
}

// RRULE renders the rule part in wire syntax, fields ordered FREQ, INTERVAL,
// BYDAY, BYMONTHDAY, BYMONTH, WKST, UNTIL or COUNT.
func (r Rule) RRULE() string {
	parts := []string{"FREQ=" + r.Freq.String()}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if len(r.ByWeekday) > 0 {
		days := make([]string, len(r.ByWeekday))
		for i, w := range r.ByWeekday {
			days[i] = w.String()
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if len(r.ByMonthDay) > 0 {
		parts = append(parts, "BYMONTHDAY="+joinInts(r.ByMonthDay))
	}
	if len(r.ByMonth) > 0 {
		months := make([]int, len(r.ByMonth))
		for i, m := range r.ByMonth {
			months[i] = int(m)
		}
		parts = append(parts, "BYMONTH="+joinInts(months))
	}
	parts = append(parts, "WKST="+weekdayTokens[r.WeekStart])
	switch {
	case !r.Until.IsZero():
		parts = append(parts, "UNTIL="+r.Until.Format(dateLayout))
	case r.Count > 0:
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	return strings.Join(parts, ";")
}

// String serializes the rule with its start date and exception dates:
//
//	DTSTART:20000101
//	RRULE:FREQ=WEEKLY;BYDAY=MO,WE,FR;WKST=SU
//	EXDATE:20190204
func (r Rule) String() string {
	var b strings.Builder
	b.WriteString("DTSTART:")
	b.WriteString(r.Start.Format(dateLayout))
	b.WriteString("\nRRULE:")
	b.WriteString(r.RRULE())
	if len(r.ExDates) > 0 {
		dates := make([]string, len(r.ExDates))
		for i, d := range r.ExDates {
			dates[i] = d.Format(dateLayout)
		}
		b.WriteString("\nEXDATE:")
		b.WriteString(strings.Join(dates, ","))
	}
	return b.String()
}

// Parse reads the output of Rule.String.
func Parse(text string) (*Rule, error) {
	var (
		start   time.Time
		rruleV  string
		exdates []time.Time
		err     error
	)
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed line %q", ErrInvalidRule, line)
		}
		switch strings.ToUpper(name) {
		case "DTSTART":
			if start, err = parseDate(value); err != nil {
				return nil, err
			}
		case "RRULE":
			rruleV = value
		case "EXDATE":
			for _, v := range strings.Split(value, ",") {
				d, err := parseDate(v)
				if err != nil {
					return nil, err
				}
				exdates = append(exdates, d)
			}
		default:
			return nil, fmt.Errorf("%w: unexpected %s line", ErrInvalidRule, name)
		}
	}
	if start.IsZero() {
		return nil, fmt.Errorf("%w: missing DTSTART", ErrInvalidRule)
	}
	if rruleV == "" {
		return nil, fmt.Errorf("%w: missing RRULE", ErrInvalidRule)
	}
	r, err := ParseRRULE(rruleV, start, time.UTC)
	if err != nil {
		return nil, err
	}
	if len(exdates) > 0 {
		r.ExDates = exdates
		r.normalize()
	}
	return r, nil
}

// ParseRRULE builds a rule from a wire RRULE value starting on start. A
// date-time UNTIL is reduced to its date as seen in loc.
func ParseRRULE(value string, start time.Time, loc *time.Location) (*Rule, error) {
	if loc == nil {
		loc = time.UTC
	}
	opt, err := rrule.StrToROptionInLocation(strings.TrimPrefix(strings.TrimSpace(value), "RRULE:"), loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	var freq Frequency
	switch opt.Freq {
	case rrule.DAILY:
		freq = Daily
	case rrule.WEEKLY:
		freq = Weekly
	case rrule.MONTHLY:
		freq = Monthly
	case rrule.YEARLY:
		freq = Yearly
	default:
		return nil, fmt.Errorf("%w: unsupported frequency %s", ErrInvalidRule, opt.Freq)
	}
	switch {
	case len(opt.Bysetpos) > 0, len(opt.Byyearday) > 0, len(opt.Byweekno) > 0,
		len(opt.Byhour) > 0, len(opt.Byminute) > 0, len(opt.Bysecond) > 0, len(opt.Byeaster) > 0:
		return nil, fmt.Errorf("%w: unsupported rule part in %q", ErrInvalidRule, value)
	}

	r := &Rule{
		Start:      DateOf(start),
		Freq:       freq,
		Interval:   opt.Interval,
		WeekStart:  fromRRuleWeekday(opt.Wkst).Day,
		Count:      opt.Count,
		ByMonthDay: opt.Bymonthday,
	}
	if r.Interval == 0 && !strings.Contains(strings.ToUpper(value), "INTERVAL=") {
		r.Interval = 1
	}
	for _, w := range opt.Byweekday {
		r.ByWeekday = append(r.ByWeekday, fromRRuleWeekday(w))
	}
	for _, m := range opt.Bymonth {
		r.ByMonth = append(r.ByMonth, time.Month(m))
	}
	if !opt.Until.IsZero() {
		r.Until = DateOf(opt.Until.In(loc))
	}
	r.normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, 'T'); i >= 0 {
		v = v[:i]
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrInvalidRule, v)
	}
	return d, nil
}

func joinInts(vs []int) string {
	s := make([]string, len(vs))
	for i, v := range vs {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ",")
}
