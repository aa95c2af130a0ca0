package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"joyous/internal/tz"
)

var (
	propTzname       = ical.ComponentProperty(ical.PropertyTzname)
	propTzoffsetfrom = ical.ComponentProperty(ical.PropertyTzoffsetfrom)
	propTzoffsetto   = ical.ComponentProperty(ical.PropertyTzoffsetto)
)

// addVTimezone appends a VTIMEZONE describing the offset changes of loc in
// the years fromYear..toYear. Zones without changes in that span are left
// out; TZID references to them resolve by name.
func addVTimezone(cal *ical.Calendar, loc *time.Location, fromYear, toYear int) {
	transitions := tz.Transitions(loc, fromYear, toYear)
	if len(transitions) == 0 {
		return
	}
	vtz := cal.AddTimezone(loc.String())
	for _, t := range transitions {
		var block *ical.ComponentBase
		if t.DST {
			d := &ical.Daylight{}
			vtz.Components = append(vtz.Components, d)
			block = &d.ComponentBase
		} else {
			block = &vtz.AddStandard().ComponentBase
		}
		block.AddProperty(ical.ComponentPropertyDtStart, t.Start.Format(dateTimeLayout), ical.WithValue("DATE-TIME"))
		block.AddProperty(propTzname, t.Name)
		block.AddProperty(propTzoffsetfrom, tz.Offset(t.OffsetFrom))
		block.AddProperty(propTzoffsetto, tz.Offset(t.OffsetTo))
	}
}
