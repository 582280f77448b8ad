package ics

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "termcal/internal/log"
	"termcal/internal/model"
)

// Entry is one VEVENT to be written: a single occurrence, or the first
// occurrence of a weekly series when RRule is set.
type Entry struct {
	model.Occurrence

	// Count is the number of weekly repeats described by RRule (1 when
	// RRule is empty).
	Count int
	RRule string
}

// Entries turns occurrences into calendar entries. With collapse set,
// each run of occurrences of the same summary in consecutive weeks
// becomes a single entry with a FREQ=WEEKLY;COUNT=n rule.
func Entries(occs []model.Occurrence, collapse bool) []Entry {
	out := make([]Entry, 0, len(occs))
	if !collapse {
		for _, o := range occs {
			out = append(out, Entry{Occurrence: o, Count: 1})
		}
		return out
	}

	for i := 0; i < len(occs); {
		j := i + 1
		for j < len(occs) && continuesRun(occs[j-1], occs[j]) {
			j++
		}
		out = append(out, seriesEntries(occs[i:j])...)
		i = j
	}
	return out
}

func continuesRun(prev, next model.Occurrence) bool {
	return next.Summary == prev.Summary &&
		next.AllDay == prev.AllDay &&
		next.Week == prev.Week+1 &&
		next.Start.Equal(prev.Start.AddDate(0, 0, 7))
}

func seriesEntries(run []model.Occurrence) []Entry {
	singles := make([]Entry, len(run))
	for k, o := range run {
		singles[k] = Entry{Occurrence: o, Count: 1}
	}
	if len(run) == 1 {
		return singles
	}

	opt := rrule.ROption{Freq: rrule.WEEKLY, Count: len(run)}
	ruleText := opt.String()

	// The rule must regenerate exactly the dates it replaces.
	opt.Dtstart = run[0].Start
	r, err := rrule.NewRRule(opt)
	if err != nil {
		appLog.Error("series: invalid weekly rule", err, "summary", run[0].Summary)
		return singles
	}
	if got := r.All(); !sameStarts(got, run) {
		appLog.Warn("series: rule does not reproduce run, writing single entries", "summary", run[0].Summary)
		return singles
	}

	e := singles[0]
	e.Count = len(run)
	e.RRule = ruleText
	e.UID = seriesUID(run)
	return []Entry{e}
}

func sameStarts(got []time.Time, run []model.Occurrence) bool {
	if len(got) != len(run) {
		return false
	}
	for k := range got {
		if !got[k].Equal(run[k].Start) {
			return false
		}
	}
	return true
}

// seriesUID keeps series identifiers distinct from those of single
// occurrences sharing a first date.
func seriesUID(run []model.Occurrence) string {
	last := run[len(run)-1].UID
	return run[0].UID[:16] + last[:16] + "@" + uidDomain
}
