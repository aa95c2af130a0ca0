package ics

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "joyous/internal/log"
	"joyous/internal/model"
	"joyous/internal/store"
	"joyous/internal/tz"
)

// Version is reported in the PRODID of exported calendars.
const Version = "1.0"

// ProductID is the PRODID written on every exported calendar.
const ProductID = "-//linuxsoftware.nz//NONSGML Joyous v" + Version + "//EN"

// Request carries the per-export context.
type Request struct {
	// BaseURL is prefixed to node paths for the URL property, e.g.
	// "http://joy.test".
	BaseURL string
	// Now stamps DTSTAMP and stands in for missing entity timestamps.
	// Zero means time.Now.
	Now time.Time
}

// Exporter renders events and containers as VCALENDARs.
type Exporter struct {
	store    store.Store
	resolver *tz.Resolver
}

func NewExporter(s store.Store, r *tz.Resolver) *Exporter {
	return &Exporter{store: s, resolver: r}
}

// Export builds a calendar for root, which must be an *model.Event or a
// *model.Container. Containers are walked depth first.
func (x *Exporter) Export(ctx context.Context, root model.Node, req Request) (*ical.Calendar, error) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	b := newCalendarBuilder(req)

	switch n := root.(type) {
	case *model.Event:
		if n == nil {
			return nil, &UnsupportedEntityError{Type: "nil event"}
		}
		if err := x.addEvent(ctx, b, n); err != nil {
			return nil, err
		}
	case *model.Container:
		if n == nil {
			return nil, &UnsupportedEntityError{Type: "nil container"}
		}
		b.name = n.Title
		if err := x.walk(ctx, b, n); err != nil {
			return nil, err
		}
	default:
		return nil, &UnsupportedEntityError{Type: fmt.Sprintf("%T", root)}
	}

	cal := b.calendar()
	appLog.Debug("ics export completed", "root", root.URLPath(), "events", len(b.events), "zones", len(b.zones))
	return cal, nil
}

// Serialize renders cal with CRLF line endings and 75-octet folding.
func Serialize(cal *ical.Calendar) []byte {
	return []byte(cal.Serialize())
}

func (x *Exporter) walk(ctx context.Context, b *calendarBuilder, c *model.Container) error {
	kids, err := x.store.Children(ctx, c)
	if err != nil {
		return fmt.Errorf("ics: list %s: %w", c.Path, err)
	}
	for _, kid := range kids {
		switch n := kid.(type) {
		case *model.Container:
			if err := x.walk(ctx, b, n); err != nil {
				return err
			}
		case *model.Event:
			if err := x.addEvent(ctx, b, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *Exporter) zoneOf(ev *model.Event) *time.Location {
	loc, err := x.resolver.Resolve(ev.TZ)
	if err != nil {
		appLog.Warn("event zone unknown; using default", "uid", ev.UID, "tz", ev.TZ, "default", loc.String())
	}
	return loc
}

func (x *Exporter) addEvent(ctx context.Context, b *calendarBuilder, ev *model.Event) error {
	loc := x.zoneOf(ev)
	switch ev.Kind {
	case model.SimpleEvent:
		ve := b.newVEvent(ev.UID)
		setSpan(ve, ev.Date, ev.TimeFrom, ev.TimeTo, loc)
		setText(ve, ev.Title, ev.Details, ev.Location)
		b.finish(ve, ev.Path, ev.Revision, ev.Created, ev.Modified)
		b.useZone(loc, ev.Date.Year(), ev.Date.Year())
		return nil
	case model.RecurringEvent:
		return x.addRecurring(ctx, b, ev, loc)
	default:
		return fmt.Errorf("ics: event %d has unknown kind %s", ev.ID, ev.Kind)
	}
}

func (x *Exporter) addRecurring(ctx context.Context, b *calendarBuilder, ev *model.Event, loc *time.Location) error {
	if ev.Rule == nil {
		return fmt.Errorf("ics: recurring event %d has no rule", ev.ID)
	}
	first, ok := ev.Rule.First()
	if !ok {
		appLog.Warn("recurring event has no occurrences; skipped", "uid", ev.UID, "repeat", ev.Rule.RRULE())
		return nil
	}
	overrides, err := x.store.Overrides(ctx, ev)
	if err != nil {
		return fmt.Errorf("ics: overrides of %s: %w", ev.UID, err)
	}

	ve := b.newVEvent(ev.UID)
	setSpan(ve, first, ev.TimeFrom, ev.TimeTo, loc)
	ve.AddProperty(ical.ComponentPropertyRrule, rruleValue(ev, loc))

	exdates := slices.Clone(ev.Rule.ExDates)
	for _, o := range overrides {
		if o.Kind == model.Cancellation || o.Kind == model.Postponement {
			exdates = append(exdates, o.ExceptDate)
		}
	}
	slices.SortFunc(exdates, func(a, b time.Time) int { return a.Compare(b) })
	exdates = slices.CompactFunc(exdates, func(a, b time.Time) bool { return a.Equal(b) })
	for _, d := range exdates {
		value, params := occurrenceValue(d, ev.TimeFrom, loc)
		ve.AddProperty(ical.ComponentPropertyExdate, value, params...)
	}
	setText(ve, ev.Title, ev.Details, ev.Location)
	b.finish(ve, ev.Path, ev.Revision, ev.Created, ev.Modified)

	lastYear := max(first.Year(), b.req.Now.In(loc).Year())
	if last, ok := ev.Rule.Last(); ok {
		lastYear = last.Year()
	}
	b.useZone(loc, first.Year(), lastYear)

	for _, o := range overrides {
		switch o.Kind {
		case model.Postponement:
			date := o.Date
			if date.IsZero() {
				date = o.ExceptDate
			}
			pe := b.newVEvent(ev.UID)
			setSpan(pe, date, o.TimeFrom, o.TimeTo, loc)
			value, params := occurrenceValue(o.ExceptDate, ev.TimeFrom, loc)
			pe.SetProperty(propRecurrenceID, value, params...)
			setText(pe, cmp.Or(o.PostponementTitle, ev.Title), o.Details, o.Location)
			b.finish(pe, o.Path, o.Revision, o.Created, o.Modified)
			b.useZone(loc, date.Year(), date.Year())
		case model.ExtraInfo:
			xe := b.newVEvent(ev.UID)
			setSpan(xe, o.ExceptDate, ev.TimeFrom, ev.TimeTo, loc)
			value, params := occurrenceValue(o.ExceptDate, ev.TimeFrom, loc)
			xe.SetProperty(propRecurrenceID, value, params...)
			setText(xe, cmp.Or(o.ExtraTitle, ev.Title), cmp.Or(o.ExtraInformation, ev.Details), ev.Location)
			b.finish(xe, o.Path, o.Revision, o.Created, o.Modified)
		}
	}
	return nil
}

// rruleValue embeds the rule, widening a date UNTIL to the end of that
// day in the event zone when DTSTART is a date-time.
func rruleValue(ev *model.Event, loc *time.Location) string {
	v := ev.Rule.RRULE()
	if ev.Rule.Until.IsZero() || ev.AllDay() {
		return v
	}
	until := model.EndOfDay.On(ev.Rule.Until, loc).UTC().Format(utcLayout)
	return strings.Replace(v, "UNTIL="+ev.Rule.Until.Format(dateLayout), "UNTIL="+until, 1)
}

// occurrenceValue renders the original start of the occurrence on date, as
// used by EXDATE and RECURRENCE-ID.
func occurrenceValue(date time.Time, from *model.Clock, loc *time.Location) (string, []ical.PropertyParameter) {
	if from == nil {
		return date.Format(dateLayout), []ical.PropertyParameter{ical.WithValue("DATE")}
	}
	return wallTime(date, *from), []ical.PropertyParameter{ical.WithTZID(loc.String())}
}

// wallTime writes the local date-time of c on date as authored. A clock in
// a DST gap is not moved past the gap.
func wallTime(date time.Time, c model.Clock) string {
	y, m, d := date.Date()
	return fmt.Sprintf("%04d%02d%02dT%02d%02d%02d", y, m, d, c.Hour, c.Minute, c.Second)
}

// setSpan writes DTSTART/DTEND. All-day spans use DATE values with an
// exclusive end on the next day, plus X-JOYOUS-TZID so the zone survives a
// reimport. A timed span without an end runs to the end of its day.
func setSpan(ve *ical.VEvent, date time.Time, from, to *model.Clock, loc *time.Location) {
	if from == nil {
		ve.SetProperty(ical.ComponentPropertyDtStart, date.Format(dateLayout), ical.WithValue("DATE"))
		ve.SetProperty(ical.ComponentPropertyDtEnd, date.AddDate(0, 0, 1).Format(dateLayout), ical.WithValue("DATE"))
		ve.SetProperty(propEventZone, loc.String())
		return
	}
	end := model.EndOfDay
	if to != nil {
		end = *to
	}
	ve.SetProperty(ical.ComponentPropertyDtStart, wallTime(date, *from), ical.WithTZID(loc.String()))
	ve.SetProperty(ical.ComponentPropertyDtEnd, wallTime(date, end), ical.WithTZID(loc.String()))
}

func setText(ve *ical.VEvent, summary, description, location string) {
	ve.SetProperty(ical.ComponentPropertySummary, summary)
	ve.SetProperty(ical.ComponentPropertyDescription, description)
	ve.SetProperty(ical.ComponentPropertyLocation, location)
}

type zoneUse struct {
	loc      *time.Location
	from, to int
}

type calendarBuilder struct {
	req    Request
	name   string
	events []*ical.VEvent
	zones  []*zoneUse
	byName map[string]*zoneUse
}

func newCalendarBuilder(req Request) *calendarBuilder {
	return &calendarBuilder{req: req, byName: map[string]*zoneUse{}}
}

func (b *calendarBuilder) newVEvent(uid string) *ical.VEvent {
	ve := ical.NewEvent(uid)
	ve.SetProperty(propDtstamp, b.req.Now.UTC().Format(utcLayout))
	return ve
}

// finish adds the bookkeeping properties and queues the VEVENT.
func (b *calendarBuilder) finish(ve *ical.VEvent, path string, revision int, created, modified time.Time) {
	ve.SetProperty(propURL, strings.TrimRight(b.req.BaseURL, "/")+path)
	ve.SetProperty(ical.ComponentPropertySequence, strconv.Itoa(revision))
	ve.SetProperty(propCreated, b.stamp(created))
	ve.SetProperty(propLastModified, b.stamp(modified))
	b.events = append(b.events, ve)
}

func (b *calendarBuilder) stamp(t time.Time) string {
	if t.IsZero() {
		t = b.req.Now
	}
	return t.UTC().Format(utcLayout)
}

// useZone records that loc is used somewhere within the given years.
func (b *calendarBuilder) useZone(loc *time.Location, from, to int) {
	z, ok := b.byName[loc.String()]
	if !ok {
		z = &zoneUse{loc: loc, from: from, to: to}
		b.byName[loc.String()] = z
		b.zones = append(b.zones, z)
		return
	}
	z.from = min(z.from, from)
	z.to = max(z.to, to)
}

// calendar assembles the VCALENDAR: VTIMEZONEs first, then VEVENTs.
func (b *calendarBuilder) calendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	if b.name != "" {
		cal.SetXWRCalName(b.name)
	}
	for _, z := range b.zones {
		addVTimezone(cal, z.loc, z.from, z.to)
	}
	for _, ve := range b.events {
		cal.Components = append(cal.Components, ve)
	}
	return cal
}
