package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	cases := []struct {
		freq Frequency
		opts []Option
		want string
	}{
		{Weekly, []Option{OnWeekdays(On(time.Monday), On(time.Wednesday), On(time.Friday))},
			"every week on Monday, Wednesday and Friday"},
		{Daily, nil, "every day"},
		{Daily, []Option{Interval(3), Count(10)}, "every 3 days, 10 times"},
		{Weekly, []Option{Interval(2), OnWeekdays(On(time.Thursday))}, "fortnightly on Thursday"},
		{Monthly, []Option{OnWeekdays(Nth(1, time.Tuesday))}, "every month on the first Tuesday"},
		{Monthly, []Option{OnWeekdays(Nth(-1, time.Friday)), Until(date(2024, 12, 31))},
			"every month on the last Friday, until 31 December 2024"},
		{Monthly, []Option{OnMonthDays(1, 15, -1)}, "every month on the 1st, 15th and last day"},
		{Yearly, []Option{InMonths(time.April), Count(1)}, "every year in April, once"},
	}
	for _, tc := range cases {
		r, err := NewRule(date(2024, 1, 1), tc.freq, tc.opts...)
		require.NoError(t, err)
		assert.Equal(t, tc.want, r.Describe())
	}
}

func TestOrdinal(t *testing.T) {
	for n, want := range map[int]string{1: "1st", 2: "2nd", 3: "3rd", 4: "4th", 11: "11th", 12: "12th", 13: "13th", 21: "21st", 22: "22nd", 31: "31st"} {
		assert.Equal(t, want, Ordinal(n))
	}
}
