package term

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Lectures begin on the Thursday after Full Term starts.
const lectureOffsetDays = 2

// MaxWeek is the furthest week, before or after week 1, that Resolve
// accepts.
const MaxWeek = 1000

// ErrWeek is returned for a week number beyond MaxWeek.
var ErrWeek = errors.New("week out of range")

// Weeks is an ordered list of week numbers relative to the start of term.
// Week 1 is the first week of lectures; 0 and below are the weeks before
// Full Term. Order and duplicates are significant.
type Weeks []int

func (w Weeks) String() string {
	parts := make([]string, len(w))
	for i, n := range w {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ",")
}

// Recurrence describes an event that happens on Day of each of Weeks in
// Term, at Clock if set and all day otherwise.
type Recurrence struct {
	Term  Term
	Weeks Weeks
	Day   Weekday
	Clock *Clock
}

func (r Recurrence) String() string {
	s := fmt.Sprintf("%s %s %s", r.Term.Letter(), r.Day.Abbrev(), r.Weeks)
	if r.Clock != nil {
		s += " " + r.Clock.String()
	}
	return s
}

// When is a resolved calendar date, or date and time when AllDay is false.
// Time is a naive wall-clock value held in UTC.
type When struct {
	Time   time.Time
	AllDay bool
}

func (w When) String() string {
	if w.AllDay {
		return w.Time.Format(time.DateOnly)
	}
	return w.Time.Format("2006-01-02 15:04")
}

// LecturesStart returns the Thursday on which week 1 of tm begins.
func (t *Table) LecturesStart(year int, tm Term) (time.Time, error) {
	start, err := t.Start(year, tm)
	if err != nil {
		return time.Time{}, err
	}
	return start.AddDate(0, 0, lectureOffsetDays), nil
}

// Resolve returns the date of day in the given week of tm, academic year
// year. Week 0 and negative weeks fall before Full Term and weeks past the
// end of term continue on, up to MaxWeek in either direction.
func (t *Table) Resolve(year int, tm Term, week int, day Weekday, clock *Clock) (When, error) {
	if !day.Valid() {
		return When{}, fmt.Errorf("%w: %s", ErrLookup, day)
	}
	if week < -MaxWeek || week > MaxWeek {
		return When{}, fmt.Errorf("%w: %d", ErrWeek, week)
	}
	lectures, err := t.LecturesStart(year, tm)
	if err != nil {
		return When{}, err
	}

	weekStart := lectures.AddDate(0, 0, (week-1)*7)
	date := weekStart.AddDate(0, 0, int(day.LectureDay()))

	if clock == nil {
		return When{Time: date, AllDay: true}, nil
	}
	if clock.Hour < 0 || clock.Hour > 23 || clock.Minute < 0 || clock.Minute > 59 {
		return When{}, fmt.Errorf("invalid time of day %s", clock)
	}
	return When{
		Time: time.Date(date.Year(), date.Month(), date.Day(), clock.Hour, clock.Minute, 0, 0, time.UTC),
	}, nil
}

// Expand resolves r for every week in r.Weeks, in the same order.
func (t *Table) Expand(r Recurrence, year int) ([]When, error) {
	out := make([]When, 0, len(r.Weeks))
	for _, week := range r.Weeks {
		w, err := t.Resolve(year, r.Term, week, r.Day, r.Clock)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// DefaultAcademicYear guesses which academic year is of interest on today.
// Before July the academic year that began last October is still running;
// from July on the coming Michaelmas is assumed.
func DefaultAcademicYear(today time.Time) int {
	if today.Month() < time.July {
		return today.Year() - 1
	}
	return today.Year()
}
