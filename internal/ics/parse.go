package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "termcal/internal/log"
)

// ParsedEvent is the normalized form of a VEVENT read back from a
// calendar. Times are naive wall-clock values in UTC, like everything
// termcal produces; TZID is kept only as a label.
type ParsedEvent struct {
	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool
	TZID   string

	RawRRule string
}

// ParseICS reads every VEVENT from r. Events that cannot be read are
// logged and skipped.
func ParseICS(r io.Reader) ([]ParsedEvent, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("ics: %w", err)
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("ics: skipping unreadable event", "err", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, fmt.Errorf("event %s: missing DTSTART", out.UID)
	}
	start, allDay, err := parseProp(startProp)
	if err != nil {
		return out, fmt.Errorf("event %s: DTSTART: %w", out.UID, err)
	}
	out.Start = start
	out.AllDay = allDay
	if tzs := startProp.ICalParameters["TZID"]; len(tzs) > 0 {
		out.TZID = tzs[0]
	}

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, _, err := parseProp(endProp)
		if err != nil {
			return out, fmt.Errorf("event %s: DTEND: %w", out.UID, err)
		}
		out.End = end
	} else if allDay {
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	return out, nil
}

// parseProp reads a DATE or DATE-TIME property value. VALUE=DATE or a value
// without a 'T' marks an all-day date.
func parseProp(p *ical.IANAProperty) (time.Time, bool, error) {
	allDay := !strings.Contains(p.Value, "T")
	if vs := p.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	t, err := parseICSTime(p.Value)
	return t, allDay, err
}

// parseICSTime parses a DATE, floating DATE-TIME or UTC DATE-TIME. The
// result is always in UTC and is not converted from any TZID.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if !strings.Contains(v, "T") {
		return time.Parse(icalDate, v)
	}
	return time.Parse(icalFloatingStamp, strings.TrimSuffix(v, "Z"))
}
