package ics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"joyous/internal/model"
	"joyous/internal/store"
	"joyous/internal/tz"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

type fixture struct {
	store    *store.Memory
	resolver *tz.Resolver
	calendar *model.Container
	clock    *testClock
}

// newFixture returns a memory store holding the "/events/" calendar, with
// timestamps frozen at now.
func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	clock := &testClock{t: now}
	s := store.NewMemory(store.WithClock(clock.now))
	r, err := tz.NewResolver("Asia/Tokyo")
	require.NoError(t, err)
	cal := &model.Container{Kind: model.CalendarContainer, Slug: "events", Title: "Events"}
	require.NoError(t, s.CreateContainer(context.Background(), nil, cal))
	return &fixture{store: s, resolver: r, calendar: cal, clock: clock}
}

func (f *fixture) exporter() *Exporter { return NewExporter(f.store, f.resolver) }
func (f *fixture) importer() *Importer { return NewImporter(f.store, f.resolver) }

func (f *fixture) export(t *testing.T, root model.Node) string {
	t.Helper()
	cal, err := f.exporter().Export(context.Background(), root, Request{BaseURL: "http://joy.test", Now: f.clock.t})
	require.NoError(t, err)
	return string(Serialize(cal))
}

func (f *fixture) events(t *testing.T) []*model.Event {
	t.Helper()
	kids, err := f.store.Children(context.Background(), f.calendar)
	require.NoError(t, err)
	var out []*model.Event
	for _, k := range kids {
		if ev, ok := k.(*model.Event); ok {
			out = append(out, ev)
		}
	}
	return out
}

// tokyo returns the instant of a Tokyo wall-clock time, the zone the
// fixtures freeze their clocks in.
func tokyo(y int, m time.Month, d, hh, mm int) time.Time {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		panic(err)
	}
	return time.Date(y, m, d, hh, mm, 0, 0, loc).UTC()
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n")
}

func payload(lines ...string) []byte {
	return []byte(crlf(lines...) + "\r\n")
}
