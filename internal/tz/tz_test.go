package tz

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver("Asia/Tokyo")
	require.NoError(t, err)
	return r
}

func TestNewResolverRejectsUnknownDefault(t *testing.T) {
	_, err := NewResolver("Nowhere/Special")
	assert.Error(t, err)
}

func TestResolveKnownZone(t *testing.T) {
	r := newResolver(t)

	loc, err := r.Resolve("Pacific/Auckland")
	require.NoError(t, err)
	assert.Equal(t, "Pacific/Auckland", loc.String())

	again, err := r.Resolve("Pacific/Auckland")
	require.NoError(t, err)
	assert.Same(t, loc, again)
}

func TestResolveEmptyUsesDefaultSilently(t *testing.T) {
	r := newResolver(t)

	loc, err := r.Resolve("  ")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestResolveUnknownFallsBackWithWarning(t *testing.T) {
	r := newResolver(t)

	for _, name := range []string{"Canada/Toronto", "UTC+0", "Local"} {
		loc, err := r.Resolve(name)
		assert.Equal(t, "Asia/Tokyo", loc.String())

		var unknown *UnknownTimezoneError
		require.True(t, errors.As(err, &unknown), name)
		assert.Equal(t, name, unknown.Name)
		assert.Equal(t, "Unknown time zone "+name, err.Error())
	}
}

func TestTransitionsSydney1987(t *testing.T) {
	loc, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)

	got := Transitions(loc, 1987, 1987)

	require.Len(t, got, 2)
	assert.Equal(t, "1987-03-15T02:00:00", got[0].Start.Format("2006-01-02T15:04:05"))
	assert.Equal(t, "AEST", got[0].Name)
	assert.Equal(t, "+1100", Offset(got[0].OffsetFrom))
	assert.Equal(t, "+1000", Offset(got[0].OffsetTo))
	assert.False(t, got[0].DST)

	assert.Equal(t, "1987-10-25T03:00:00", got[1].Start.Format("2006-01-02T15:04:05"))
	assert.Equal(t, "AEDT", got[1].Name)
	assert.Equal(t, "+1000", Offset(got[1].OffsetFrom))
	assert.Equal(t, "+1100", Offset(got[1].OffsetTo))
	assert.True(t, got[1].DST)
}

func TestTransitionsNoDST(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	assert.Empty(t, Transitions(tokyo, 2000, 2019))
	assert.False(t, HasDST(tokyo, 2000, 2019))
	assert.False(t, HasDST(time.UTC, 1970, 2030))
}

func TestTransitionsSpanYears(t *testing.T) {
	auckland, err := time.LoadLocation("Pacific/Auckland")
	require.NoError(t, err)

	got := Transitions(auckland, 2008, 2009)

	assert.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Start.After(got[i-1].Start))
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, "+1000", Offset(10*3600))
	assert.Equal(t, "-0500", Offset(-5*3600))
	assert.Equal(t, "+0530", Offset(5*3600+30*60))
	assert.Equal(t, "+0000", Offset(0))
	assert.Equal(t, "+093916", Offset(9*3600+39*60+16))
}
