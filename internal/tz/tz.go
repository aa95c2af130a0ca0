// Package tz resolves IANA zone names and derives the DST transition table
// needed for VTIMEZONE components.
package tz

import (
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"
)

// UnknownTimezoneError reports a zone name that could not be resolved. It
// is a warning: Resolve still returns the default zone alongside it.
type UnknownTimezoneError struct {
	Name string
}

func (e *UnknownTimezoneError) Error() string {
	return "Unknown time zone " + e.Name
}

// Resolver maps zone names onto locations, falling back to a configured
// default zone.
type Resolver struct {
	def   *time.Location
	cache sync.Map // name -> *time.Location
}

// NewResolver returns a resolver whose fallback is defaultZone.
func NewResolver(defaultZone string) (*Resolver, error) {
	loc, err := load(defaultZone)
	if err != nil {
		return nil, fmt.Errorf("default timezone: %w", err)
	}
	return &Resolver{def: loc}, nil
}

// Default returns the fallback zone.
func (r *Resolver) Default() *time.Location {
	return r.def
}

// Resolve looks up name. An empty name yields the default zone with no
// error; an unknown name yields the default zone and *UnknownTimezoneError.
func (r *Resolver) Resolve(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return r.def, nil
	}
	if loc, ok := r.cache.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := load(name)
	if err != nil {
		return r.def, &UnknownTimezoneError{Name: name}
	}
	r.cache.Store(name, loc)
	return loc, nil
}

// Name returns the zone name to record for loc, using the default zone for
// nil.
func (r *Resolver) Name(loc *time.Location) string {
	if loc == nil {
		return r.def.String()
	}
	return loc.String()
}

func load(name string) (*time.Location, error) {
	// "Local" depends on the host, which would make exports vary between
	// machines.
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("unknown time zone %q", name)
	}
	return time.LoadLocation(name)
}

// Transition is one change of UTC offset in a zone.
type Transition struct {
	// Start is the wall-clock time at which the new offset begins, in that
	// new offset (the VTIMEZONE DTSTART convention).
	Start time.Time
	// Name is the abbreviation in force after the change, e.g. "AEDT".
	Name       string
	OffsetFrom int // seconds east of UTC before the change
	OffsetTo   int // seconds east of UTC after the change
	DST        bool
}

// Transitions lists the offset changes of loc that occur within the
// calendar years fromYear..toYear inclusive, in order.
func Transitions(loc *time.Location, fromYear, toYear int) []Transition {
	if loc == nil || toYear < fromYear {
		return nil
	}
	var out []Transition
	t := time.Date(fromYear, time.January, 1, 0, 0, 0, 0, loc)
	limit := time.Date(toYear+1, time.January, 1, 0, 0, 0, 0, loc)
	for {
		_, end := t.ZoneBounds()
		if end.IsZero() || !end.Before(limit) {
			break
		}
		before := end.Add(-time.Second).In(loc)
		after := end.In(loc)
		_, offFrom := before.Zone()
		name, offTo := after.Zone()
		if offFrom != offTo {
			out = append(out, Transition{
				Start:      after,
				Name:       name,
				OffsetFrom: offFrom,
				OffsetTo:   offTo,
				DST:        after.IsDST(),
			})
		}
		t = end
	}
	return out
}

// HasDST reports whether loc changes offset within the given years.
func HasDST(loc *time.Location, fromYear, toYear int) bool {
	return len(Transitions(loc, fromYear, toYear)) > 0
}

// Offset renders seconds east of UTC as +HHMM (or +HHMMSS when needed).
func Offset(seconds int) string {
	sign := '+'
	if seconds < 0 {
		sign = '-'
		seconds = -seconds
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if s != 0 {
		return fmt.Sprintf("%c%02d%02d%02d", sign, h, m, s)
	}
	return fmt.Sprintf("%c%02d%02d", sign, h, m)
}
