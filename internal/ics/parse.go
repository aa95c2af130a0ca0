package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "joyous/internal/log"
	"joyous/internal/model"
)

var (
	propDtstamp      = ical.ComponentProperty(ical.PropertyDtstamp)
	propCreated      = ical.ComponentProperty(ical.PropertyCreated)
	propLastModified = ical.ComponentProperty(ical.PropertyLastModified)
	propRecurrenceID = ical.ComponentProperty(ical.PropertyRecurrenceId)
	propURL          = ical.ComponentProperty(ical.PropertyUrl)

	// propEventZone names the zone of an all-day event, whose DATE values
	// cannot carry a TZID.
	propEventZone = ical.ComponentProperty("X-JOYOUS-TZID")
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

// document is a parsed iCalendar payload reduced to what the importer
// needs: calendar-level metadata plus VEVENTs grouped by UID.
type document struct {
	Name     string // X-WR-CALNAME
	Desc     string // X-WR-CALDESC
	ZoneName string // X-WR-TIMEZONE

	Groups     []*group
	MissingUID int
	Invalid    int // VEVENTs with unreadable dates
}

// group is every VEVENT sharing one UID: at most one base component plus
// the overrides of individual occurrences.
type group struct {
	UID         string
	Base        *component
	Recurrences []*component
}

// component is one VEVENT.
type component struct {
	UID         string
	Sequence    int
	Summary     string
	Description string
	Location    string
	URL         string
	Zone        string

	Start *rawTime
	End   *rawTime

	RRule        string
	ExDates      []rawTime
	RecurrenceID *rawTime

	Created      time.Time
	LastModified time.Time
}

// rawTime is a DATE or DATE-TIME value as written on the wire. Zone
// resolution is left to the importer, which knows the event's zone.
type rawTime struct {
	Value string
	TZID  string
	Date  bool
}

// UTC reports whether the value is a UTC ("Z") date-time.
func (t rawTime) UTC() bool {
	return !t.Date && strings.HasSuffix(t.Value, "Z")
}

// In interprets the value in loc. UTC values are converted to loc;
// floating and TZID values are read as wall-clock time in loc. DATE values
// come back as midnight in loc.
func (t rawTime) In(loc *time.Location) (time.Time, error) {
	switch {
	case t.Date:
		return time.ParseInLocation(dateLayout, t.Value, loc)
	case t.UTC():
		v, err := time.Parse(utcLayout, t.Value)
		if err != nil {
			return time.Time{}, err
		}
		return v.In(loc), nil
	default:
		return time.ParseInLocation(dateTimeLayout, t.Value, loc)
	}
}

// Clock is the wall-clock time written in a floating or TZID value. It is
// read without a zone, so a time inside a DST gap is kept as written. DATE
// and UTC values have none.
func (t rawTime) Clock() *model.Clock {
	if t.Date || t.UTC() {
		return nil
	}
	v, err := time.Parse(dateTimeLayout, t.Value)
	if err != nil {
		return nil
	}
	return model.ClockOf(v)
}

// parseDocument parses body with golang-ical. An empty body or one that is
// not a VCALENDAR is malformed.
func parseDocument(body []byte) (*document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedDocument)
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if cal == nil {
		return nil, fmt.Errorf("%w: no calendar", ErrMalformedDocument)
	}

	doc := &document{}
	for _, p := range cal.CalendarProperties {
		switch strings.ToUpper(p.IANAToken) {
		case "X-WR-CALNAME":
			doc.Name = p.Value
		case "X-WR-CALDESC":
			doc.Desc = p.Value
		case "X-WR-TIMEZONE":
			doc.ZoneName = strings.TrimSpace(p.Value)
		}
	}

	byUID := map[string]*group{}
	for _, ve := range cal.Events() {
		c, err := parseVEvent(ve)
		if err != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", err)
			doc.Invalid++
			continue
		}
		if c.UID == "" {
			doc.MissingUID++
			continue
		}
		g, ok := byUID[c.UID]
		if !ok {
			g = &group{UID: c.UID}
			byUID[c.UID] = g
			doc.Groups = append(doc.Groups, g)
		}
		if c.RecurrenceID != nil {
			g.Recurrences = append(g.Recurrences, c)
		} else {
			// A repeated base component: the later one wins.
			g.Base = c
		}
	}
	return doc, nil
}

func parseVEvent(ve *ical.VEvent) (*component, error) {
	c := &component{
		UID:         propValue(ve, ical.ComponentPropertyUniqueId),
		Summary:     propValue(ve, ical.ComponentPropertySummary),
		Description: propValue(ve, ical.ComponentPropertyDescription),
		Location:    propValue(ve, ical.ComponentPropertyLocation),
		URL:         propValue(ve, propURL),
		Zone:        propValue(ve, propEventZone),
		RRule:       propValue(ve, ical.ComponentPropertyRrule),
	}
	if v := propValue(ve, ical.ComponentPropertySequence); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sequence = n
		}
	}

	var err error
	if c.Start, err = timeProp(ve.GetProperty(ical.ComponentPropertyDtStart)); err != nil {
		return nil, fmt.Errorf("DTSTART of %q: %w", c.UID, err)
	}
	if c.End, err = timeProp(ve.GetProperty(ical.ComponentPropertyDtEnd)); err != nil {
		return nil, fmt.Errorf("DTEND of %q: %w", c.UID, err)
	}
	if c.RecurrenceID, err = timeProp(ve.GetProperty(propRecurrenceID)); err != nil {
		return nil, fmt.Errorf("RECURRENCE-ID of %q: %w", c.UID, err)
	}

	// EXDATE may repeat and each may hold a comma separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid, isDate := timeParams(p)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t := rawTime{Value: part, TZID: tzid, Date: isDate || len(part) == len(dateLayout)}
			if err := t.check(); err != nil {
				return nil, fmt.Errorf("EXDATE of %q: %w", c.UID, err)
			}
			c.ExDates = append(c.ExDates, t)
		}
	}

	c.Created = stampProp(ve.GetProperty(propCreated))
	c.LastModified = stampProp(ve.GetProperty(propLastModified))
	return c, nil
}

func propValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Value)
}

func timeParams(p *ical.IANAProperty) (tzid string, isDate bool) {
	for key, vs := range p.ICalParameters {
		if len(vs) == 0 {
			continue
		}
		switch strings.ToUpper(key) {
		case "TZID":
			tzid = strings.Trim(vs[0], `"`)
		case "VALUE":
			isDate = strings.EqualFold(vs[0], "DATE")
		}
	}
	return tzid, isDate
}

func timeProp(p *ical.IANAProperty) (*rawTime, error) {
	if p == nil || strings.TrimSpace(p.Value) == "" {
		return nil, nil
	}
	tzid, isDate := timeParams(p)
	v := strings.TrimSpace(p.Value)
	t := &rawTime{Value: v, TZID: tzid, Date: isDate || len(v) == len(dateLayout)}
	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t rawTime) check() error {
	_, err := t.In(time.UTC)
	if err != nil {
		return errors.New("bad date-time " + strconv.Quote(t.Value))
	}
	return nil
}

// stampProp reads CREATED / LAST-MODIFIED style values. Floating values
// are taken as UTC; unparseable ones are ignored.
func stampProp(p *ical.IANAProperty) time.Time {
	if p == nil {
		return time.Time{}
	}
	t := rawTime{Value: strings.TrimSpace(p.Value)}
	if len(t.Value) == len(dateLayout) {
		t.Date = true
	}
	v, err := t.In(time.UTC)
	if err != nil {
		return time.Time{}
	}
	return v.UTC()
}
