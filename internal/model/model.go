package model

import (
	"time"

	"termcal/internal/term"
)

// Event is one parsed input line: a description and the recurrence that
// places it in term.
type Event struct {
	// Line is the 1-based line number in the input, or 0 if unknown.
	Line int

	Description string
	Recurrence  term.Recurrence
}

// Occurrence is a single concrete calendar entry produced by expanding an
// Event for a given academic year.
type Occurrence struct {
	// UID is stable across runs for the same description and start.
	UID string

	Summary string

	// Week is the week of term this occurrence was resolved from.
	Week int

	AllDay bool

	// Start / End are naive wall-clock times held in UTC. For all-day
	// occurrences End is the following midnight.
	Start time.Time
	End   time.Time
}
