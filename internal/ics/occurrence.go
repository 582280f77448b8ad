package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"termcal/internal/model"
	"termcal/internal/term"
)

const uidDomain = "termcal"

// Occurrences expands every event for the academic year starting in
// Michaelmas of year. Output order follows the events, then each event's
// week list. Timed occurrences last duration; all-day ones last a day.
func Occurrences(events []model.Event, table *term.Table, year int, duration time.Duration) ([]model.Occurrence, error) {
	out := make([]model.Occurrence, 0, len(events))
	for _, ev := range events {
		dates, err := table.Expand(ev.Recurrence, year)
		if err != nil {
			if ev.Line > 0 {
				return nil, fmt.Errorf("line %d: %w", ev.Line, err)
			}
			return nil, err
		}
		for i, w := range dates {
			out = append(out, newOccurrence(ev, ev.Recurrence.Weeks[i], w, duration))
		}
	}
	return out, nil
}

func newOccurrence(ev model.Event, week int, w term.When, duration time.Duration) model.Occurrence {
	occ := model.Occurrence{
		UID:     UID(ev.Description, w),
		Summary: ev.Description,
		Week:    week,
		AllDay:  w.AllDay,
		Start:   w.Time,
	}
	if w.AllDay {
		occ.End = w.Time.AddDate(0, 0, 1)
	} else {
		occ.End = w.Time.Add(duration)
	}
	return occ
}

// UID derives a calendar UID from the description and resolved date, so
// regenerating a calendar yields the same identifiers and importing it
// twice does not duplicate entries.
func UID(description string, w term.When) string {
	sum := sha256.Sum256([]byte(description + "|" + w.String()))
	return hex.EncodeToString(sum[:16]) + "@" + uidDomain
}
