package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "termcal/internal/log"
	"termcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls expansion of parsed events.
type ExpandConfig struct {
	// RangeStart / RangeEnd bound the occurrences returned (inclusive).
	// Zero values leave that side open.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps open-ended rules. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences and the UIDs whose
// expansion hit the cap.
type ExpandResult struct {
	Occurrences     []model.Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed events into concrete occurrences, in
// input order, expanding RRULE series week by week.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if !cfg.RangeStart.IsZero() && !cfg.RangeEnd.IsZero() && cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	result.Occurrences = make([]model.Occurrence, 0, len(events))
	for _, ev := range events {
		if ev.RawRRule == "" {
			if cfg.Contains(ev.Start) {
				result.Occurrences = append(result.Occurrences, makeOccurrence(ev, ev.Start))
			}
			continue
		}

		occ, hitCap, err := expandRecurring(ev, cfg)
		if err != nil {
			appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
			continue
		}
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Warn("expand: truncated occurrences", "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		result.Occurrences = append(result.Occurrences, occ...)
	}

	return result, nil
}

func expandRecurring(ev ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool, error) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)

	out := make([]model.Occurrence, 0)
	next := set.Iterator()
	for {
		start, ok := next()
		if !ok {
			return out, false, nil
		}
		if !cfg.RangeEnd.IsZero() && start.After(cfg.RangeEnd) {
			return out, false, nil
		}
		if !cfg.Contains(start) {
			continue
		}
		if len(out) == cfg.MaxOccurrencesPerEvent {
			return out, true, nil
		}
		out = append(out, makeOccurrence(ev, start))
	}
}

// Contains reports whether t falls within the configured range.
func (cfg ExpandConfig) Contains(t time.Time) bool {
	if !cfg.RangeStart.IsZero() && t.Before(cfg.RangeStart) {
		return false
	}
	if !cfg.RangeEnd.IsZero() && t.After(cfg.RangeEnd) {
		return false
	}
	return true
}

// makeOccurrence places ev at start, keeping its duration.
func makeOccurrence(ev ParsedEvent, start time.Time) model.Occurrence {
	return model.Occurrence{
		UID:     ev.UID,
		Summary: ev.Summary,
		AllDay:  ev.AllDay,
		Start:   start,
		End:     start.Add(ev.End.Sub(ev.Start)),
	}
}
