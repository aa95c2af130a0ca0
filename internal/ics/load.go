package ics

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	appLog "joyous/internal/log"
	"joyous/internal/model"
	"joyous/internal/recurrence"
	"joyous/internal/report"
	"joyous/internal/store"
	"joyous/internal/tz"
)

// Importer loads iCalendar payloads into a calendar container.
type Importer struct {
	store    store.Store
	resolver *tz.Resolver
}

func NewImporter(s store.Store, r *tz.Resolver) *Importer {
	return &Importer{store: s, resolver: r}
}

// Load reconciles the VEVENTs in data against the events stored under cal.
//
// Events are matched by UID: matches are updated in place, the rest are
// created under cal. Every UID is handled as one atomic unit together with
// its occurrence overrides. Per-event problems end up in the returned
// report; only a missing calendar is returned as an error.
//
// Callers must not run two loads into the same calendar concurrently.
func (im *Importer) Load(ctx context.Context, cal *model.Container, data []byte) (*report.Report, error) {
	if cal == nil {
		return nil, ErrCalendarNotInitialized
	}
	rep := &report.Report{}

	doc, err := parseDocument(data)
	if err != nil {
		appLog.Error("ics parse failed", err, "calendar", cal.Path)
		rep.AddError("Could not parse iCalendar file", err)
		return rep, nil
	}
	appLog.Info("ics load start", "calendar", cal.Path, "name", doc.Name, "desc", doc.Desc, "uids", len(doc.Groups))

	l := &loader{
		Importer: im,
		cal:      cal,
		doc:      doc,
		report:   rep,
		warned:   map[string]bool{},
	}

	loaded := 0
	failed := doc.Invalid
	var errs []error
	if doc.MissingUID > 0 {
		failed += doc.MissingUID
		errs = append(errs, fmt.Errorf("%w (%d events)", ErrMissingUID, doc.MissingUID))
		appLog.Error("ics events without uid skipped", ErrMissingUID, "count", doc.MissingUID)
	}
	for _, g := range doc.Groups {
		err := im.store.Atomic(ctx, func(tx store.Store) error {
			return l.loadGroup(ctx, tx, g)
		})
		if err != nil {
			appLog.Error("ics event load failed", err, "uid", g.UID, "calendar", cal.Path)
			errs = append(errs, err)
			failed++
			continue
		}
		loaded++
	}

	if loaded > 0 {
		rep.AddMessage(report.Success, fmt.Sprintf("%d iCal events loaded", loaded))
	}
	if failed > 0 {
		rep.AddError(fmt.Sprintf("Could not load %d iCal events", failed), errors.Join(errs...))
	}
	appLog.Info("ics load completed", "calendar", cal.Path, "loaded", loaded, "failed", failed)
	return rep, nil
}

// loader holds the state of one Load call.
type loader struct {
	*Importer
	cal    *model.Container
	doc    *document
	report *report.Report

	calZone *time.Location
	warned  map[string]bool
}

// resolve looks up a zone name, reporting each unknown name once. Unknown
// names fall back to the resolver default.
func (l *loader) resolve(name string) *time.Location {
	loc, err := l.resolver.Resolve(name)
	var unknown *tz.UnknownTimezoneError
	if errors.As(err, &unknown) {
		if !l.warned[unknown.Name] {
			l.warned[unknown.Name] = true
			appLog.Warn("ics unknown time zone", "tz", unknown.Name, "fallback", loc.String())
			l.report.AddWarning(unknown.Error(), err)
		}
	}
	return loc
}

// calendarZone is the zone for floating times of new events: X-WR-TIMEZONE
// when present, otherwise the default.
func (l *loader) calendarZone() *time.Location {
	if l.calZone == nil {
		l.calZone = l.resolve(l.doc.ZoneName)
	}
	return l.calZone
}

// eventZone picks the zone for an event: the DTSTART TZID if it has one,
// else the X-JOYOUS-TZID of an all-day event, else the stored event's zone,
// else the calendar zone.
func (l *loader) eventZone(existing *model.Event, c *component) *time.Location {
	start := c.Start
	if start != nil && start.TZID != "" {
		if loc, err := l.resolver.Resolve(start.TZID); err == nil {
			return loc
		}
		l.resolve(start.TZID)
		return l.calendarZone()
	}
	if c.Zone != "" {
		if loc, err := l.resolver.Resolve(c.Zone); err == nil {
			return loc
		}
		l.resolve(c.Zone)
	}
	if existing != nil && existing.TZ != "" {
		return l.resolve(existing.TZ)
	}
	return l.calendarZone()
}

func (l *loader) loadGroup(ctx context.Context, tx store.Store, g *group) error {
	existing, err := tx.FindEventByUID(ctx, g.UID)
	if err != nil {
		return err
	}

	ev := existing
	if g.Base != nil {
		if ev, err = l.loadBase(ctx, tx, g.Base, existing); err != nil {
			return err
		}
	}
	if ev == nil {
		return fmt.Errorf("%w: %s", ErrNoBaseEvent, g.UID)
	}
	if len(g.Recurrences) == 0 && (g.Base == nil || len(g.Base.ExDates) == 0) {
		return nil
	}
	if ev.Kind != model.RecurringEvent {
		return fmt.Errorf("%w: %s has occurrence overrides but does not repeat", ErrKindMismatch, g.UID)
	}

	loc := l.resolve(ev.TZ)
	targeted := map[time.Time]bool{}
	for _, c := range g.Recurrences {
		date, err := l.loadRecurrence(ctx, tx, ev, c, loc)
		if err != nil {
			return err
		}
		targeted[date] = true
	}
	if g.Base != nil {
		for _, x := range g.Base.ExDates {
			if err := l.loadExDate(ctx, tx, ev, x, loc, targeted); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadBase creates or updates the event described by a component without a
// RECURRENCE-ID.
func (l *loader) loadBase(ctx context.Context, tx store.Store, c *component, existing *model.Event) (*model.Event, error) {
	if c.Start == nil {
		return nil, fmt.Errorf("ics: %s has no DTSTART", c.UID)
	}
	kind := model.SimpleEvent
	if c.RRule != "" {
		kind = model.RecurringEvent
	}
	if existing != nil && existing.Kind != kind {
		return nil, fmt.Errorf("%w: %s is stored as %s but arrived as %s", ErrKindMismatch, c.UID, existing.Kind, kind)
	}

	loc := l.eventZone(existing, c)
	start, err := c.Start.In(loc)
	if err != nil {
		return nil, err
	}
	ev := &model.Event{Kind: kind, UID: c.UID}
	if existing != nil {
		if !c.LastModified.IsZero() && c.LastModified.Before(existing.Modified) {
			appLog.Debug("ics event unchanged since last import", "uid", c.UID, "last_modified", c.LastModified)
			return existing, nil
		}
		copied := *existing
		ev = &copied
	}
	ev.Title = c.Summary
	ev.Details = c.Description
	ev.Location = c.Location
	ev.Website = c.URL
	ev.TZ = loc.String()
	ev.Date = recurrence.DateOf(start)
	ev.TimeFrom, ev.TimeTo = nil, nil
	if !c.Start.Date {
		ev.TimeFrom = cmp.Or(c.Start.Clock(), model.ClockOf(start))
		if c.End != nil && !c.End.Date {
			end, err := c.End.In(loc)
			if err != nil {
				return nil, err
			}
			ev.TimeTo = cmp.Or(c.End.Clock(), model.ClockOf(end))
		}
	}

	if kind == model.RecurringEvent {
		rule, err := recurrence.ParseRRULE(c.RRule, ev.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("ics: %s: %w", c.UID, err)
		}
		if existing != nil && existing.Rule != nil && len(existing.Rule.ExDates) > 0 {
			kept := rule.WithExDates(existing.Rule.ExDates...)
			rule = &kept
		}
		ev.Rule = rule
		ev.Date = time.Time{}
	}
	if !c.Created.IsZero() && existing == nil {
		ev.Created = c.Created
	}

	if existing == nil {
		if err := tx.CreateEvent(ctx, l.cal, ev); err != nil {
			return nil, err
		}
		appLog.Debug("ics event created", "uid", ev.UID, "path", ev.Path)
		return ev, nil
	}
	if err := tx.UpdateEvent(ctx, ev); err != nil {
		return nil, err
	}
	appLog.Debug("ics event updated", "uid", ev.UID, "revision", ev.Revision)
	return ev, nil
}

// loadRecurrence creates or updates the override named by a RECURRENCE-ID
// component and returns the except date it targets.
func (l *loader) loadRecurrence(ctx context.Context, tx store.Store, ev *model.Event, c *component, loc *time.Location) (time.Time, error) {
	rid, err := l.timeIn(c.RecurrenceID, loc)
	if err != nil {
		return time.Time{}, err
	}
	exceptDate := recurrence.DateOf(rid)
	start := rid
	if c.Start != nil {
		if start, err = l.timeIn(c.Start, loc); err != nil {
			return time.Time{}, err
		}
	}
	kind := model.ExtraInfo
	if !start.Equal(rid) {
		kind = model.Postponement
	}

	o, err := tx.FindOverride(ctx, ev, exceptDate)
	if err != nil {
		return time.Time{}, err
	}
	if o != nil {
		if o.Kind != kind {
			return time.Time{}, fmt.Errorf("%w: %s on %s is a %s, not a %s", ErrKindMismatch,
				ev.UID, exceptDate.Format(time.DateOnly), o.Kind, kind)
		}
		if !c.LastModified.IsZero() && c.LastModified.Before(o.Modified) {
			return exceptDate, nil
		}
	} else {
		o = &model.Override{Kind: kind, ExceptDate: exceptDate}
	}

	switch kind {
	case model.ExtraInfo:
		o.ExtraTitle = c.Summary
		o.ExtraInformation = c.Description
	case model.Postponement:
		o.PostponementTitle = c.Summary
		o.Details = c.Description
		o.Location = c.Location
		o.Date = recurrence.DateOf(start)
		o.TimeFrom, o.TimeTo = nil, nil
		if c.Start != nil && !c.Start.Date {
			o.TimeFrom = model.ClockOf(start)
			if c.End != nil && !c.End.Date {
				end, err := l.timeIn(c.End, loc)
				if err != nil {
					return time.Time{}, err
				}
				o.TimeTo = model.ClockOf(end)
			}
		}
	}

	if o.ID == 0 {
		err = tx.CreateOverride(ctx, ev, o)
	} else {
		err = tx.UpdateOverride(ctx, o)
	}
	return exceptDate, err
}

// loadExDate records an EXDATE as a cancellation unless a RECURRENCE-ID in
// the same document targets that date. A stored postponement or extra-info
// the document no longer carries is replaced.
func (l *loader) loadExDate(ctx context.Context, tx store.Store, ev *model.Event, x rawTime, loc *time.Location, targeted map[time.Time]bool) error {
	t, err := l.timeIn(&x, loc)
	if err != nil {
		return err
	}
	date := recurrence.DateOf(t)
	if targeted[date] {
		return nil
	}
	targeted[date] = true
	found, err := tx.FindOverride(ctx, ev, date)
	if err != nil {
		return err
	}
	if found != nil {
		if found.Kind == model.Cancellation {
			return nil
		}
		appLog.Debug("ics exdate replaces override", "uid", ev.UID, "date", date.Format(time.DateOnly), "kind", found.Kind.String())
		if err := tx.DeleteOverride(ctx, found); err != nil {
			return err
		}
	}
	return tx.CreateOverride(ctx, ev, &model.Override{Kind: model.Cancellation, ExceptDate: date})
}

// timeIn reads an occurrence time in the event zone, honouring its own
// TZID when it has one.
func (l *loader) timeIn(t *rawTime, loc *time.Location) (time.Time, error) {
	if t.TZID != "" && !t.Date {
		own, err := l.resolver.Resolve(t.TZID)
		if err != nil {
			l.resolve(t.TZID)
			own = loc
		}
		v, err := t.In(own)
		if err != nil {
			return time.Time{}, err
		}
		return v.In(loc), nil
	}
	return t.In(loc)
}
