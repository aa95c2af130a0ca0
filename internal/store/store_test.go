package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joyous/internal/model"
	"joyous/internal/recurrence"
)

var testNow = time.Date(2019, 1, 21, 9, 30, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

// eachStore runs fn against a fresh Memory and a fresh in-memory SQLite.
func eachStore(t *testing.T, fn func(t *testing.T, s Store, clock *fixedClock)) {
	t.Run("memory", func(t *testing.T) {
		clock := &fixedClock{t: testNow}
		fn(t, NewMemory(WithClock(clock.now)), clock)
	})
	t.Run("sqlite", func(t *testing.T) {
		clock := &fixedClock{t: testNow}
		s, err := OpenSQLite(context.Background(), ":memory:", WithClock(clock.now))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s, clock)
	})
}

func newCalendar(t *testing.T, s Store, title string) *model.Container {
	t.Helper()
	cal := &model.Container{Kind: model.CalendarContainer, Title: title}
	require.NoError(t, s.CreateContainer(context.Background(), nil, cal))
	return cal
}

func chessEvent(t *testing.T) *model.Event {
	t.Helper()
	rule, err := recurrence.NewRule(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), recurrence.Weekly,
		recurrence.OnWeekdays(recurrence.On(time.Monday), recurrence.On(time.Wednesday), recurrence.On(time.Friday)),
		recurrence.WeekStart(time.Sunday))
	require.NoError(t, err)
	return &model.Event{
		Kind:     model.RecurringEvent,
		UID:      "chess-uid",
		Title:    "Chess",
		TZ:       "Asia/Tokyo",
		TimeFrom: model.At(12, 0),
		TimeTo:   model.At(13, 0),
		Rule:     rule,
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Mini-Fair & Garage Sale": "mini-fair-garage-sale",
		"BBQ":                     "bbq",
		"  Café Crème  ":          "cafe-creme",
		"Chess_Club  Night":       "chess-club-night",
		"&&&":                     "event",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/events/", NormalizePath("events"))
	assert.Equal(t, "/events/", NormalizePath("/events"))
	assert.Equal(t, "/club/events/", NormalizePath("/club/events/"))
	assert.Equal(t, "/", NormalizePath(""))
}

func TestTree(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, _ *fixedClock) {
		ctx := context.Background()
		club := &model.Container{Kind: model.GroupContainer, Title: "Chess Club"}
		require.NoError(t, s.CreateContainer(ctx, nil, club))
		assert.Equal(t, "/chess-club/", club.Path)
		assert.Equal(t, testNow, club.Created)

		cal := &model.Container{Kind: model.CalendarContainer, Title: "Events"}
		require.NoError(t, s.CreateContainer(ctx, club, cal))
		assert.Equal(t, "/chess-club/events/", cal.Path)
		assert.Equal(t, club.ID, cal.ParentID)

		page := &model.Page{Title: "About"}
		require.NoError(t, s.CreatePage(ctx, club, page))
		assert.Equal(t, "/chess-club/about/", page.Path)

		// Sibling slugs stay unique.
		dup := &model.Container{Kind: model.CalendarContainer, Title: "Events"}
		require.NoError(t, s.CreateContainer(ctx, club, dup))
		assert.Equal(t, "/chess-club/events-2/", dup.Path)

		got, err := s.ContainerByPath(ctx, "chess-club/events")
		require.NoError(t, err)
		assert.Equal(t, cal.ID, got.ID)
		assert.Equal(t, model.CalendarContainer, got.Kind)

		_, err = s.ContainerByPath(ctx, "/nope/")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Container(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)

		ev := chessEvent(t)
		require.NoError(t, s.CreateEvent(ctx, cal, ev))

		kids, err := s.Children(ctx, club)
		require.NoError(t, err)
		require.Len(t, kids, 3)
		assert.Equal(t, "/chess-club/events/", kids[0].URLPath())
		assert.Equal(t, "/chess-club/events-2/", kids[1].URLPath())
		assert.IsType(t, &model.Page{}, kids[2])

		kids, err = s.Children(ctx, cal)
		require.NoError(t, err)
		require.Len(t, kids, 1)
		assert.Equal(t, "/chess-club/events/chess/", kids[0].URLPath())

		all, err := s.Containers(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestCreateEvent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, _ *fixedClock) {
		ctx := context.Background()
		cal := newCalendar(t, s, "Events")

		ev := &model.Event{
			Kind:     model.SimpleEvent,
			Title:    "Mini-Fair & Garage Sale",
			TZ:       "Pacific/Auckland",
			Date:     time.Date(2018, 3, 17, 0, 0, 0, 0, time.UTC),
			TimeFrom: model.At(10, 0),
		}
		require.NoError(t, s.CreateEvent(ctx, cal, ev))
		assert.NotZero(t, ev.ID)
		assert.NotEmpty(t, ev.UID, "uid is generated")
		assert.Equal(t, "mini-fair-garage-sale", ev.Slug)
		assert.Equal(t, "/events/mini-fair-garage-sale/", ev.Path)
		assert.Equal(t, 1, ev.Revision)
		assert.Equal(t, testNow, ev.Created)
		assert.Equal(t, testNow, ev.Modified)

		got, err := s.FindEventByUID(ctx, ev.UID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, ev.Title, got.Title)
		assert.Equal(t, ev.Date, got.Date)
		assert.Equal(t, *ev.TimeFrom, *got.TimeFrom)
		assert.Nil(t, got.TimeTo)
		assert.Equal(t, cal.ID, got.CalendarID)

		// Same title, new slug.
		again := &model.Event{Kind: model.SimpleEvent, Title: "Mini-Fair & Garage Sale", Date: ev.Date}
		require.NoError(t, s.CreateEvent(ctx, cal, again))
		assert.Equal(t, "mini-fair-garage-sale-2", again.Slug)

		clash := &model.Event{Kind: model.SimpleEvent, UID: ev.UID, Title: "Other", Date: ev.Date}
		assert.ErrorIs(t, s.CreateEvent(ctx, cal, clash), ErrDuplicate)

		missing, err := s.FindEventByUID(ctx, "nope")
		assert.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestCreateEventRejects(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, _ *fixedClock) {
		ctx := context.Background()
		cal := newCalendar(t, s, "Events")

		err := s.CreateEvent(ctx, nil, &model.Event{Kind: model.SimpleEvent, Title: "x"})
		assert.ErrorIs(t, err, ErrInvalid)

		err = s.CreateEvent(ctx, cal, &model.Event{Kind: model.RecurringEvent, Title: "x"})
		assert.ErrorIs(t, err, ErrInvalid)

		err = s.CreateEvent(ctx, &model.Container{ID: 9999}, &model.Event{Kind: model.SimpleEvent, Title: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateEvent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, clock *fixedClock) {
		ctx := context.Background()
		cal := newCalendar(t, s, "Events")
		ev := chessEvent(t)
		require.NoError(t, s.CreateEvent(ctx, cal, ev))

		clock.t = testNow.Add(time.Hour)
		ev.Title = "Chess Club"
		ev.Slug = "ignored"
		ev.TimeTo = model.At(14, 0)
		exdate := time.Date(2019, 2, 4, 0, 0, 0, 0, time.UTC)
		rule := ev.Rule.WithExDates(exdate)
		ev.Rule = &rule
		require.NoError(t, s.UpdateEvent(ctx, ev))
		assert.Equal(t, 2, ev.Revision)
		assert.Equal(t, "chess", ev.Slug)
		assert.Equal(t, testNow, ev.Created)
		assert.Equal(t, clock.t, ev.Modified)

		got, err := s.Event(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "Chess Club", got.Title)
		assert.Equal(t, 2, got.Revision)
		assert.Equal(t, model.Clock{Hour: 14}, *got.TimeTo)
		require.NotNil(t, got.Rule)
		assert.Equal(t, []time.Time{exdate}, got.Rule.ExDates)
		assert.Equal(t, time.Sunday, got.Rule.WeekStart)
		assert.Equal(t, ev.Rule.RRULE(), got.Rule.RRULE())

		swapped := *got
		swapped.Kind = model.SimpleEvent
		assert.ErrorIs(t, s.UpdateEvent(ctx, &swapped), ErrInvalid)

		assert.ErrorIs(t, s.UpdateEvent(ctx, &model.Event{ID: 9999, Kind: model.SimpleEvent}), ErrNotFound)
	})
}

func TestOverrides(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, clock *fixedClock) {
		ctx := context.Background()
		cal := newCalendar(t, s, "Events")
		ev := chessEvent(t)
		require.NoError(t, s.CreateEvent(ctx, cal, ev))

		post := &model.Override{
			Kind:              model.Postponement,
			ExceptDate:        time.Date(2019, 10, 2, 0, 0, 0, 0, time.UTC),
			PostponementTitle: "Early Morning Matches",
			Date:              time.Date(2019, 10, 3, 0, 0, 0, 0, time.UTC),
			TimeFrom:          model.At(7, 30),
			TimeTo:            model.At(8, 30),
		}
		require.NoError(t, s.CreateOverride(ctx, ev, post))
		assert.Equal(t, "2019-10-02-postponement", post.Slug)
		assert.Equal(t, "Postponement for Wednesday 2nd of October", post.Title)
		assert.Equal(t, "/events/chess/2019-10-02-postponement/", post.Path)
		assert.Equal(t, 1, post.Revision)

		cancel := &model.Override{Kind: model.Cancellation, ExceptDate: time.Date(2019, 2, 4, 0, 0, 0, 0, time.UTC)}
		require.NoError(t, s.CreateOverride(ctx, ev, cancel))

		dup := &model.Override{Kind: model.ExtraInfo, ExceptDate: post.ExceptDate}
		assert.ErrorIs(t, s.CreateOverride(ctx, ev, dup), ErrDuplicate)

		got, err := s.FindOverride(ctx, ev, time.Date(2019, 10, 2, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.Postponement, got.Kind)
		assert.Equal(t, "Early Morning Matches", got.PostponementTitle)
		assert.Equal(t, post.Date, got.Date)
		assert.Equal(t, model.Clock{Hour: 7, Minute: 30}, *got.TimeFrom)

		none, err := s.FindOverride(ctx, ev, time.Date(2019, 10, 4, 0, 0, 0, 0, time.UTC))
		assert.NoError(t, err)
		assert.Nil(t, none)

		clock.t = testNow.Add(time.Minute)
		got.PostponementTitle = "Late Matches"
		require.NoError(t, s.UpdateOverride(ctx, got))
		assert.Equal(t, 2, got.Revision)

		list, err := s.Overrides(ctx, ev)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Late Matches", list[0].PostponementTitle)
		assert.Equal(t, model.Cancellation, list[1].Kind)

		simple := &model.Event{Kind: model.SimpleEvent, Title: "BBQ", Date: time.Date(2008, 6, 5, 0, 0, 0, 0, time.UTC)}
		require.NoError(t, s.CreateEvent(ctx, cal, simple))
		err = s.CreateOverride(ctx, simple, &model.Override{Kind: model.Cancellation, ExceptDate: simple.Date})
		assert.ErrorIs(t, err, ErrInvalid)

		require.NoError(t, s.DeleteEvent(ctx, ev))
		list, err = s.Overrides(ctx, ev)
		require.NoError(t, err)
		assert.Empty(t, list)
		_, err = s.Event(ctx, ev.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteOverride(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, _ *fixedClock) {
		ctx := context.Background()
		cal := newCalendar(t, s, "Events")
		ev := chessEvent(t)
		require.NoError(t, s.CreateEvent(ctx, cal, ev))

		day := time.Date(2019, 10, 2, 0, 0, 0, 0, time.UTC)
		info := &model.Override{Kind: model.ExtraInfo, ExceptDate: day, ExtraTitle: "Blitz"}
		require.NoError(t, s.CreateOverride(ctx, ev, info))
		require.NoError(t, s.DeleteOverride(ctx, info))
		assert.ErrorIs(t, s.DeleteOverride(ctx, info), ErrNotFound)

		got, err := s.FindOverride(ctx, ev, day)
		require.NoError(t, err)
		assert.Nil(t, got)

		// the date is free again for another kind
		cancel := &model.Override{Kind: model.Cancellation, ExceptDate: day}
		require.NoError(t, s.CreateOverride(ctx, ev, cancel))
		assert.Equal(t, "/events/chess/2019-10-02-cancellation/", cancel.Path)
	})
}

func TestAtomicRollsBack(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store, _ *fixedClock) {
		ctx := context.Background()
		cal := newCalendar(t, s, "Events")
		boom := errors.New("boom")

		err := s.Atomic(ctx, func(tx Store) error {
			ev := chessEvent(t)
			if err := tx.CreateEvent(ctx, cal, ev); err != nil {
				return err
			}
			found, err := tx.FindEventByUID(ctx, "chess-uid")
			require.NoError(t, err)
			require.NotNil(t, found, "writes are visible inside the unit")
			return boom
		})
		assert.ErrorIs(t, err, boom)

		found, err := s.FindEventByUID(ctx, "chess-uid")
		require.NoError(t, err)
		assert.Nil(t, found)

		err = s.Atomic(ctx, func(tx Store) error {
			return tx.Atomic(ctx, func(inner Store) error {
				return inner.CreateEvent(ctx, cal, chessEvent(t))
			})
		})
		require.NoError(t, err)
		found, err = s.FindEventByUID(ctx, "chess-uid")
		require.NoError(t, err)
		assert.NotNil(t, found)
	})
}
