package term

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLookup is returned when a year, term or weekday is not known.
var ErrLookup = errors.New("lookup failed")

// Term is one of the three terms of the academic year.
type Term int

const (
	Michaelmas Term = iota
	Lent
	Easter
)

// Terms lists every term in academic-year order.
var Terms = [...]Term{Michaelmas, Lent, Easter}

var termNames = [...]string{"Michaelmas", "Lent", "Easter"}

// Full Term always begins in these months.
var termMonths = [...]time.Month{time.October, time.January, time.April}

func (t Term) Valid() bool {
	return t >= Michaelmas && t <= Easter
}

func (t Term) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Term(%d)", int(t))
	}
	return termNames[t]
}

// Letter returns the single-letter abbreviation used in the input notation.
func (t Term) Letter() string {
	return t.String()[:1]
}

// Month is the calendar month in which Full Term of t starts.
func (t Term) Month() time.Month {
	return termMonths[t]
}

// yearOffset is the number of calendar years between the start of the
// academic year and the start of t. Lent and Easter fall in the calendar
// year after Michaelmas.
func (t Term) yearOffset() int {
	if t == Michaelmas {
		return 0
	}
	return 1
}

// ParseTerm matches a term letter (M, L, E) or full term name, ignoring case.
func ParseTerm(s string) (Term, error) {
	s = strings.TrimSpace(s)
	for _, t := range Terms {
		if strings.EqualFold(s, t.Letter()) || strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown term %q", ErrLookup, s)
}

// Weekday indexes the days of the week from Monday = 0 to Sunday = 6.
// This is the index space of the input notation.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Abbrev returns the three-letter abbreviation ("Mon" .. "Sun").
func (d Weekday) Abbrev() string {
	return d.String()[:3]
}

// LectureDay converts d into the lecture-week index space, where weeks run
// Thursday to Wednesday.
func (d Weekday) LectureDay() LectureDay {
	return LectureDay((int(d) + 4) % 7)
}

// FromStd converts a standard library weekday into a Weekday.
func FromStd(wd time.Weekday) Weekday {
	return Weekday((int(wd) + 6) % 7)
}

// ParseWeekday matches a three-letter abbreviation or full day name,
// ignoring case.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	for d := Monday; d <= Sunday; d++ {
		if strings.EqualFold(s, d.Abbrev()) || strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown weekday %q", ErrLookup, s)
}

// LectureDay indexes the days of a lecture week from Thursday = 0 to
// Wednesday = 6. Week 1 of term starts on the Thursday two days after
// Full Term begins.
type LectureDay int

// Clock is a time of day. A nil *Clock means an all-day event.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
