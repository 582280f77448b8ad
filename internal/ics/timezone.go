package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

// addTimezone adds a VTIMEZONE for tzid describing every offset change of
// loc between from and to. Each change is written as its own observance,
// so no rule needs to be inferred from the zone database.
func addTimezone(cal *ical.Calendar, tzid string, loc *time.Location, from, to time.Time) {
	tz := cal.AddTimezone(tzid)

	t := from.In(loc)
	name, off := t.Zone()
	addObservance(tz, t.IsDST(), t, off, off, name)

	for {
		_, end := t.ZoneBounds()
		if end.IsZero() || !end.Before(to) {
			return
		}
		t = end.In(loc)
		newName, newOff := t.Zone()
		// DTSTART is the local time of the change under the offset it replaces.
		addObservance(tz, t.IsDST(), end.In(time.FixedZone("", off)), off, newOff, newName)
		off = newOff
	}
}

func addObservance(tz *ical.VTimezone, dst bool, start time.Time, fromOff, toOff int, name string) {
	var cb *ical.ComponentBase
	if dst {
		d := &ical.Daylight{}
		tz.Components = append(tz.Components, d)
		cb = &d.ComponentBase
	} else {
		cb = &tz.AddStandard().ComponentBase
	}
	cb.SetProperty(ical.ComponentPropertyDtStart, start.Format(icalFloatingStamp))
	cb.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetfrom), utcOffset(fromOff))
	cb.SetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto), utcOffset(toOff))
	if name != "" {
		cb.SetProperty(ical.ComponentProperty(ical.PropertyTzname), name)
	}
}

// utcOffset formats seconds east of UTC as "+hhmm".
func utcOffset(sec int) string {
	sign := '+'
	if sec < 0 {
		sign = '-'
		sec = -sec
	}
	return fmt.Sprintf("%c%02d%02d", sign, sec/3600, sec%3600/60)
}

// coveredYears returns the first instant of the earliest year and of the
// year after the latest one touched by entries, as wall clock in loc.
func coveredYears(entries []Entry, loc *time.Location) (from, to time.Time) {
	lo, hi := 0, 0
	for i, e := range entries {
		last := e.End
		if e.Count > 1 {
			last = e.End.AddDate(0, 0, 7*(e.Count-1))
		}
		if i == 0 || e.Start.Year() < lo {
			lo = e.Start.Year()
		}
		if i == 0 || last.Year() > hi {
			hi = last.Year()
		}
	}
	return time.Date(lo, time.January, 1, 0, 0, 0, 0, loc), time.Date(hi+1, time.January, 1, 0, 0, 0, 0, loc)
}
