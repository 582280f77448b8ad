package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"termcal/internal/config"
	appLog "termcal/internal/log"
)

const (
	icalDate          = "20060102"
	icalFloatingStamp = "20060102T150405"
)

// BuildOptions controls calendar-level output.
type BuildOptions struct {
	config.CalendarConfig

	// Stamp is written as DTSTAMP on every event. Zero means time.Now().
	Stamp time.Time
}

// Build assembles a VCALENDAR with one VEVENT per entry. Entries whose UID
// was already written are dropped, so repeated weeks in one input do not
// produce duplicate events.
func Build(entries []Entry, opts BuildOptions) *ical.Calendar {
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(opts.ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	tzid := opts.Timezone
	if tzid != "" {
		cal.SetXWRTimezone(tzid)
		loc, err := time.LoadLocation(tzid)
		if err != nil {
			appLog.Warn("ics: unknown timezone, writing floating times", "timezone", tzid, "err", err)
			tzid = ""
		} else if timed := timedEntries(entries); len(timed) > 0 {
			from, to := coveredYears(timed, loc)
			addTimezone(cal, tzid, loc, from, to)
		}
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.UID] {
			appLog.Debug("ics: duplicate occurrence dropped", "summary", e.Summary, "start", e.Start.Format(time.DateTime))
			continue
		}
		seen[e.UID] = true
		addEvent(cal, e, tzid, stamp)
	}
	return cal
}

func addEvent(cal *ical.Calendar, e Entry, tzid string, stamp time.Time) {
	ev := cal.AddEvent(e.UID)
	ev.SetDtStampTime(stamp)
	ev.SetSummary(e.Summary)

	if e.AllDay {
		ev.SetAllDayStartAt(e.Start)
		ev.SetAllDayEndAt(e.End)
	} else {
		var params []ical.PropertyParameter
		if tzid != "" {
			params = append(params, &ical.KeyValues{Key: "TZID", Value: []string{tzid}})
		}
		// Wall-clock values are written as-is: floating, or in tzid.
		ev.SetProperty(ical.ComponentPropertyDtStart, e.Start.Format(icalFloatingStamp), params...)
		ev.SetProperty(ical.ComponentPropertyDtEnd, e.End.Format(icalFloatingStamp), params...)
	}

	if e.RRule != "" {
		ev.AddProperty(ical.ComponentPropertyRrule, e.RRule)
	}
}

func timedEntries(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if !e.AllDay {
			out = append(out, e)
		}
	}
	return out
}

// Serialize writes cal to w.
func Serialize(w io.Writer, cal *ical.Calendar) error {
	return cal.SerializeTo(w)
}

// WriteFile writes cal to path atomically.
func WriteFile(path string, cal *ical.Calendar) error {
	if err := config.WriteFileAtomic(path, []byte(cal.Serialize()), 0o644); err != nil {
		return err
	}
	appLog.Info("calendar written", "path", path, "events", len(cal.Events()))
	return nil
}
