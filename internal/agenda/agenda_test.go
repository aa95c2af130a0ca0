package agenda

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joyous/internal/model"
	"joyous/internal/recurrence"
	"joyous/internal/store"
	"joyous/internal/tz"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store  *store.Memory
	agenda *Agenda
	cal    *model.Container
	tokyo  *time.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemory()
	r, err := tz.NewResolver("Asia/Tokyo")
	require.NoError(t, err)
	cal := &model.Container{Kind: model.CalendarContainer, Slug: "events", Title: "Events"}
	require.NoError(t, s.CreateContainer(context.Background(), nil, cal))
	return &fixture{store: s, agenda: New(s, r), cal: cal, tokyo: r.Default()}
}

// chessClub is a Monday, Wednesday and Friday noon series with one
// override of each kind.
func (f *fixture) chessClub(t *testing.T, parent *model.Container) *model.Event {
	t.Helper()
	ctx := context.Background()
	rule, err := recurrence.NewRule(date(2000, 1, 1), recurrence.Weekly,
		recurrence.OnWeekdays(recurrence.On(time.Monday), recurrence.On(time.Wednesday), recurrence.On(time.Friday)))
	require.NoError(t, err)
	ev := &model.Event{
		Kind:     model.RecurringEvent,
		Title:    "Chess",
		Location: "Library",
		TimeFrom: model.At(12, 0),
		TimeTo:   model.At(13, 0),
		Rule:     rule,
	}
	require.NoError(t, f.store.CreateEvent(ctx, parent, ev))
	require.NoError(t, f.store.CreateOverride(ctx, ev, &model.Override{
		Kind:       model.Cancellation,
		ExceptDate: date(2019, 2, 4),
	}))
	require.NoError(t, f.store.CreateOverride(ctx, ev, &model.Override{
		Kind:              model.Postponement,
		ExceptDate:        date(2019, 2, 6),
		PostponementTitle: "Early Morning Matches",
		Date:              date(2019, 2, 9),
		TimeFrom:          model.At(7, 30),
		TimeTo:            model.At(8, 30),
	}))
	require.NoError(t, f.store.CreateOverride(ctx, ev, &model.Override{
		Kind:       model.ExtraInfo,
		ExceptDate: date(2019, 2, 8),
		ExtraTitle: "Grand Final",
	}))
	return ev
}

func TestBetweenAppliesOverrides(t *testing.T) {
	f := newFixture(t)
	chess := f.chessClub(t, f.cal)

	from := time.Date(2019, 2, 4, 0, 0, 0, 0, f.tokyo)
	occs, err := f.agenda.Between(context.Background(), f.cal, from, from.AddDate(0, 0, 8), f.tokyo)
	require.NoError(t, err)

	require.Len(t, occs, 3)
	assert.Equal(t, "Grand Final", occs[0].Title)
	assert.Equal(t, model.ExtraInfo, occs[0].Override)
	assert.Equal(t, time.Date(2019, 2, 8, 12, 0, 0, 0, f.tokyo), occs[0].Start)
	assert.Equal(t, "/events/chess/2019-02-08-extra-info/", occs[0].Path)

	assert.Equal(t, "Early Morning Matches", occs[1].Title)
	assert.Equal(t, model.Postponement, occs[1].Override)
	assert.Equal(t, date(2019, 2, 6), occs[1].ExceptDate)
	assert.Equal(t, time.Date(2019, 2, 9, 7, 30, 0, 0, f.tokyo), occs[1].Start)
	assert.Equal(t, time.Date(2019, 2, 9, 8, 30, 0, 0, f.tokyo), occs[1].End)
	assert.Equal(t, "Library", occs[1].Location)

	assert.Equal(t, "Chess", occs[2].Title)
	assert.Equal(t, time.Date(2019, 2, 11, 12, 0, 0, 0, f.tokyo), occs[2].Start)
	assert.Equal(t, "/events/chess/", occs[2].Path)
	for _, o := range occs {
		assert.Equal(t, chess.ID, o.EventID)
		assert.NotEqual(t, date(2019, 2, 4), o.ExceptDate, "cancelled occurrence is hidden")
	}
}

func TestBetweenOrdersAcrossEventsAndGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	group := &model.Container{Kind: model.GroupContainer, Slug: "club", Title: "Club"}
	require.NoError(t, f.store.CreateContainer(ctx, f.cal, group))
	f.chessClub(t, group)

	require.NoError(t, f.store.CreateEvent(ctx, f.cal, &model.Event{
		Kind:  model.SimpleEvent,
		Title: "Fair",
		Date:  date(2019, 2, 8),
	}))
	require.NoError(t, f.store.CreateEvent(ctx, f.cal, &model.Event{
		Kind:     model.SimpleEvent,
		Title:    "BBQ",
		Date:     date(2019, 2, 8),
		TimeFrom: model.At(17, 30),
		TZ:       "Pacific/Auckland",
	}))

	occs, err := f.agenda.OnDay(ctx, f.cal, date(2019, 2, 8), f.tokyo)
	require.NoError(t, err)

	var titles []string
	for _, o := range occs {
		titles = append(titles, o.Title)
	}
	// 17:30 in Auckland is 13:30 in Tokyo.
	assert.Equal(t, []string{"Fair", "Grand Final", "BBQ"}, titles)
	assert.True(t, occs[0].AllDay)
	assert.Equal(t, time.Date(2019, 2, 9, 0, 0, 0, 0, f.tokyo), occs[0].End)
	assert.Equal(t, time.Date(2019, 2, 8, 13, 30, 0, 0, f.tokyo), occs[2].Start)
	assert.Equal(t, time.Date(2019, 2, 8, 19, 59, 59, 0, f.tokyo), occs[2].End, "open-ended runs to the end of the day")
}

func TestBetweenPostponedIntoRange(t *testing.T) {
	f := newFixture(t)
	f.chessClub(t, f.cal)

	occs, err := f.agenda.OnDay(context.Background(), f.cal, date(2019, 2, 9), f.tokyo)
	require.NoError(t, err)
	require.Len(t, occs, 1, "Saturday only holds the postponed match")
	assert.Equal(t, "Early Morning Matches", occs[0].Title)
}

func TestBetweenCapsExpansion(t *testing.T) {
	f := newFixture(t)
	f.chessClub(t, f.cal)
	f.agenda.MaxOccurrencesPerEvent = 2

	from := time.Date(2019, 3, 1, 0, 0, 0, 0, f.tokyo)
	occs, err := f.agenda.Between(context.Background(), f.cal, from, from.AddDate(0, 1, 0), f.tokyo)
	require.NoError(t, err)
	assert.Len(t, occs, 2)
}

func TestBetweenRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2019, 3, 1, 0, 0, 0, 0, f.tokyo)

	_, err := f.agenda.Between(context.Background(), f.cal, now, now.Add(-time.Hour), nil)
	assert.ErrorIs(t, err, errRangeReversed)

	_, err = f.agenda.Between(context.Background(), nil, now, now, nil)
	assert.Error(t, err)
}
