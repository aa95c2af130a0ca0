package model

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrideNaming(t *testing.T) {
	d := time.Date(2018, 4, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2018-04-05-extra-info", OverrideSlug(ExtraInfo, d))
	assert.Equal(t, "Extra-Info for Thursday 5th of April", OverrideTitle(ExtraInfo, d))

	d = time.Date(2019, 10, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2019-10-02-postponement", OverrideSlug(Postponement, d))
	assert.Equal(t, "Postponement for Wednesday 2nd of October", OverrideTitle(Postponement, d))

	d = time.Date(2019, 2, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "Cancellation for Monday 4th of February", OverrideTitle(Cancellation, d))
}

func TestClock(t *testing.T) {
	c, err := ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 7, Minute: 30}, *c)
	assert.Equal(t, "07:30:00", c.String())

	c, err = ParseClock("23:59:59")
	require.NoError(t, err)
	assert.Equal(t, EndOfDay, *c)

	_, err = ParseClock("7pm")
	assert.Error(t, err)

	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)
	at := At(17, 30).On(time.Date(2008, 7, 15, 0, 0, 0, 0, time.UTC), auckland)
	assert.Equal(t, "2008-07-15T17:30:00+12:00", at.Format(time.RFC3339))
}

func TestAllDay(t *testing.T) {
	assert.True(t, (&Event{}).AllDay())
	assert.False(t, (&Event{TimeFrom: At(9, 0)}).AllDay())
}
