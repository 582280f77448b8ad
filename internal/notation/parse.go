// Package notation parses the one-line event notation
//
//	E Tue 2,5 15:00; Project presentations
//
// into a term.Recurrence and description.
package notation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"termcal/internal/model"
	"termcal/internal/term"
)

var (
	// ErrFormat reports a line or recurrence with the wrong shape.
	ErrFormat = errors.New("bad format")
	// ErrParse reports a week expression that cannot be read.
	ErrParse = errors.New("bad week expression")
)

// ParseRecurrence parses "<term> <weekday> <weeks> [HH:MM]".
func ParseRecurrence(text string) (term.Recurrence, error) {
	var r term.Recurrence

	fields := strings.Fields(text)
	if len(fields) != 3 && len(fields) != 4 {
		return r, fmt.Errorf("%w: expected \"<term> <day> <weeks> [HH:MM]\", got %d fields in %q",
			ErrFormat, len(fields), strings.TrimSpace(text))
	}

	var err error
	if r.Term, err = term.ParseTerm(fields[0]); err != nil {
		return r, err
	}
	if r.Day, err = term.ParseWeekday(fields[1]); err != nil {
		return r, err
	}
	if r.Weeks, err = ParseWeeks(fields[2]); err != nil {
		return r, err
	}
	if len(fields) == 4 {
		if r.Clock, err = parseClock(fields[3]); err != nil {
			return r, err
		}
	}
	return r, nil
}

func parseClock(s string) (*term.Clock, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: time %q is not HH:MM", ErrFormat, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: hour in %q", ErrFormat, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: minute in %q", ErrFormat, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return nil, fmt.Errorf("%w: time %q out of range", ErrFormat, s)
	}
	return &term.Clock{Hour: h, Minute: m}, nil
}

// ParseLine parses "<recurrence>; <description>". Blank and comment lines
// must be filtered out before calling ParseLine.
func ParseLine(line string) (model.Event, error) {
	rec, desc, ok := strings.Cut(line, ";")
	if !ok {
		return model.Event{}, fmt.Errorf("%w: missing ';' between recurrence and description", ErrFormat)
	}
	r, err := ParseRecurrence(rec)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{
		Description: strings.TrimSpace(desc),
		Recurrence:  r,
	}, nil
}
