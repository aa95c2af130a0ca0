package recurrence

import (
	"fmt"
	"strconv"
	"strings"
)

var ordinalWords = map[int]string{
	1: "first", 2: "second", 3: "third", 4: "fourth", 5: "fifth",
	-1: "last", -2: "penultimate",
}

var unitNames = map[Frequency][2]string{
	Daily:   {"day", "days"},
	Weekly:  {"week", "weeks"},
	Monthly: {"month", "months"},
	Yearly:  {"year", "years"},
}

// Describe renders the rule for people, e.g. "every week on Monday,
// Wednesday and Friday". It is not meant to be parsed back.
func (r Rule) Describe() string {
	var b strings.Builder

	unit := unitNames[r.Freq]
	switch {
	case r.Interval <= 1:
		b.WriteString("every " + unit[0])
	case r.Interval == 2 && r.Freq == Weekly:
		b.WriteString("fortnightly")
	default:
		fmt.Fprintf(&b, "every %d %s", r.Interval, unit[1])
	}

	if len(r.ByWeekday) > 0 {
		names := make([]string, len(r.ByWeekday))
		for i, w := range r.ByWeekday {
			names[i] = describeWeekday(w)
		}
		b.WriteString(" on ")
		if r.ByWeekday[0].N != 0 {
			b.WriteString("the ")
		}
		b.WriteString(joinWords(names))
	}
	if len(r.ByMonthDay) > 0 {
		days := make([]string, len(r.ByMonthDay))
		for i, d := range r.ByMonthDay {
			days[i] = describeMonthDay(d)
		}
		if len(r.ByWeekday) > 0 {
			b.WriteString(" and")
		}
		b.WriteString(" on the " + joinWords(days))
	}
	if len(r.ByMonth) > 0 {
		months := make([]string, len(r.ByMonth))
		for i, m := range r.ByMonth {
			months[i] = m.String()
		}
		b.WriteString(" in " + joinWords(months))
	}

	switch {
	case !r.Until.IsZero():
		b.WriteString(", until " + r.Until.Format("2 January 2006"))
	case r.Count == 1:
		b.WriteString(", once")
	case r.Count > 1:
		fmt.Fprintf(&b, ", %d times", r.Count)
	}
	return b.String()
}

func describeWeekday(w Weekday) string {
	if w.N == 0 {
		return w.Day.String()
	}
	word, ok := ordinalWords[w.N]
	if !ok {
		word = Ordinal(-w.N) + " last"
	}
	return word + " " + w.Day.String()
}

func describeMonthDay(d int) string {
	switch {
	case d == -1:
		return "last day"
	case d < 0:
		return Ordinal(-d) + " last day"
	default:
		return Ordinal(d)
	}
}

// Ordinal renders n with its English suffix: 1st, 2nd, 3rd, 11th, 22nd.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

// joinWords joins with commas and a final "and".
func joinWords(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	default:
		return strings.Join(words[:len(words)-1], ", ") + " and " + words[len(words)-1]
	}
}
