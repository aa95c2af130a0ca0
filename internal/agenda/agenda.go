// Package agenda lists the concrete occurrences of the events in a
// calendar, with cancellations, postponements and extra information applied.
package agenda

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	appLog "joyous/internal/log"
	"joyous/internal/model"
	"joyous/internal/recurrence"
	"joyous/internal/store"
	"joyous/internal/tz"
)

const defaultMaxOccurrencesPerEvent = 5000

var errRangeReversed = errors.New("agenda: range end is before range start")

// Agenda expands stored events into occurrences.
type Agenda struct {
	store    store.Store
	resolver *tz.Resolver

	// MaxOccurrencesPerEvent caps the expansion of one series in a single
	// listing. Zero means 5000.
	MaxOccurrencesPerEvent int
}

func New(s store.Store, r *tz.Resolver) *Agenda {
	return &Agenda{store: s, resolver: r}
}

// Between returns the occurrences of every event under cal, groups
// included, that overlap [from, to). Start and End are reported in loc,
// or the resolver default when loc is nil. The result is ordered by start.
func (a *Agenda) Between(ctx context.Context, cal *model.Container, from, to time.Time, loc *time.Location) ([]model.Occurrence, error) {
	if cal == nil {
		return nil, errors.New("agenda: calendar is nil")
	}
	if to.Before(from) {
		return nil, errRangeReversed
	}
	if loc == nil {
		loc = a.resolver.Default()
	}
	w := window{from: from, to: to, display: loc, max: cmp.Or(a.MaxOccurrencesPerEvent, defaultMaxOccurrencesPerEvent)}

	var out []model.Occurrence
	err := a.walk(ctx, cal, func(ev *model.Event) error {
		occs, err := a.expandEvent(ctx, ev, w)
		if err != nil {
			return fmt.Errorf("agenda: %s: %w", ev.Path, err)
		}
		out = append(out, occs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(x, y model.Occurrence) int {
		return cmp.Or(x.Start.Compare(y.Start), cmp.Compare(x.Title, y.Title))
	})
	return out, nil
}

// OnDay returns the occurrences overlapping the civil day of day in loc.
func (a *Agenda) OnDay(ctx context.Context, cal *model.Container, day time.Time, loc *time.Location) ([]model.Occurrence, error) {
	if loc == nil {
		loc = a.resolver.Default()
	}
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return a.Between(ctx, cal, from, from.AddDate(0, 0, 1), loc)
}

func (a *Agenda) walk(ctx context.Context, c *model.Container, fn func(*model.Event) error) error {
	kids, err := a.store.Children(ctx, c)
	if err != nil {
		return err
	}
	for _, k := range kids {
		switch n := k.(type) {
		case *model.Container:
			if err := a.walk(ctx, n, fn); err != nil {
				return err
			}
		case *model.Event:
			if err := fn(n); err != nil {
				return err
			}
		}
	}
	return nil
}

type window struct {
	from, to time.Time
	display  *time.Location
	max      int
}

func (w window) overlaps(start, end time.Time) bool {
	if !end.After(start) {
		return !start.Before(w.from) && start.Before(w.to)
	}
	return start.Before(w.to) && end.After(w.from)
}

// span is the start and end of an occurrence on date in loc.
func span(date time.Time, from, to *model.Clock, loc *time.Location) (time.Time, time.Time) {
	if from == nil {
		start := model.Clock{}.On(date, loc)
		return start, start.AddDate(0, 0, 1)
	}
	end := model.EndOfDay
	if to != nil {
		end = *to
	}
	return from.On(date, loc), end.On(date, loc)
}

func (a *Agenda) zone(ev *model.Event) *time.Location {
	loc, err := a.resolver.Resolve(ev.TZ)
	if err != nil {
		appLog.Warn("agenda unknown time zone", "event", ev.Path, "tz", ev.TZ, "fallback", loc.String())
	}
	return loc
}

func (a *Agenda) expandEvent(ctx context.Context, ev *model.Event, w window) ([]model.Occurrence, error) {
	loc := a.zone(ev)
	switch ev.Kind {
	case model.SimpleEvent:
		start, end := span(ev.Date, ev.TimeFrom, ev.TimeTo, loc)
		if !w.overlaps(start, end) {
			return nil, nil
		}
		return []model.Occurrence{occurrence(ev, start, end, w.display)}, nil
	case model.RecurringEvent:
		return a.expandSeries(ctx, ev, loc, w)
	default:
		return nil, fmt.Errorf("unknown event kind %s", ev.Kind)
	}
}

func (a *Agenda) expandSeries(ctx context.Context, ev *model.Event, loc *time.Location, w window) ([]model.Occurrence, error) {
	if ev.Rule == nil {
		return nil, recurrence.ErrInvalidRule
	}
	overrides, err := a.store.Overrides(ctx, ev)
	if err != nil {
		return nil, err
	}
	byDate := make(map[time.Time]*model.Override, len(overrides))
	for _, o := range overrides {
		byDate[o.ExceptDate] = o
	}

	var out []model.Occurrence
	// Postponed occurrences are listed where they moved to, whatever the
	// original date.
	for _, o := range overrides {
		if o.Kind != model.Postponement || o.Date.IsZero() {
			continue
		}
		start, end := span(o.Date, o.TimeFrom, o.TimeTo, loc)
		if !w.overlaps(start, end) {
			continue
		}
		occ := occurrence(ev, start, end, w.display)
		occ.ExceptDate = o.ExceptDate
		occ.Override = model.Postponement
		occ.Title = cmp.Or(o.PostponementTitle, ev.Title)
		occ.Details = cmp.Or(o.Details, ev.Details)
		occ.Location = cmp.Or(o.Location, ev.Location)
		occ.Path = o.Path
		out = append(out, occ)
	}

	lo := recurrence.DateOf(w.from.In(loc))
	hi := recurrence.DateOf(w.to.In(loc)).AddDate(0, 0, 1)
	n := 0
	for date := range ev.Rule.Expand(lo, hi) {
		if n == w.max {
			appLog.Error("agenda occurrences truncated", errors.New("max occurrences reached"),
				"event", ev.Path, "cap", w.max)
			break
		}
		n++
		o := byDate[date]
		if o != nil && o.Kind != model.ExtraInfo {
			continue
		}
		start, end := span(date, ev.TimeFrom, ev.TimeTo, loc)
		if !w.overlaps(start, end) {
			continue
		}
		occ := occurrence(ev, start, end, w.display)
		occ.ExceptDate = date
		if o != nil {
			occ.Override = model.ExtraInfo
			occ.Title = cmp.Or(o.ExtraTitle, ev.Title)
			occ.Details = cmp.Or(o.ExtraInformation, ev.Details)
			occ.Path = o.Path
		}
		out = append(out, occ)
	}
	return out, nil
}

func occurrence(ev *model.Event, start, end time.Time, display *time.Location) model.Occurrence {
	return model.Occurrence{
		EventID:  ev.ID,
		UID:      ev.UID,
		Title:    ev.Title,
		Details:  ev.Details,
		Location: ev.Location,
		Path:     ev.Path,
		AllDay:   ev.AllDay(),
		Start:    start.In(display),
		End:      end.In(display),
	}
}
