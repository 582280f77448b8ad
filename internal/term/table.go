package term

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed terms.yaml
var defaultTableYAML []byte

// Table maps an academic year (the calendar year in which its Michaelmas
// term falls) to the day of month on which Full Term starts for each term.
//
// A Table is immutable once constructed and safe for concurrent use.
type Table struct {
	days map[int][3]int
}

// NewTable builds a Table from year -> [Michaelmas, Lent, Easter] start days.
// Every entry must name a real date that falls on a Tuesday.
func NewTable(days map[int][3]int) (*Table, error) {
	t := &Table{days: make(map[int][3]int, len(days))}
	for year, row := range days {
		for _, tm := range Terms {
			if err := validateStart(year, tm, row[tm]); err != nil {
				return nil, err
			}
		}
		t.days[year] = row
	}
	return t, nil
}

func validateStart(year int, tm Term, day int) error {
	y := year + tm.yearOffset()
	d := time.Date(y, tm.Month(), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != tm.Month() {
		return fmt.Errorf("term table: %s %d: day %d does not exist in %s %d", tm, year, day, tm.Month(), y)
	}
	if wd := FromStd(d.Weekday()); wd != Tuesday {
		return fmt.Errorf("term table: %s %d: Full Term must start on a Tuesday, %s is a %s",
			tm, year, d.Format(time.DateOnly), wd)
	}
	return nil
}

// ParseTable decodes a YAML document of the form
//
//	2022: [4, 17, 25]
//
// into a Table.
func ParseTable(data []byte) (*Table, error) {
	var raw map[int][]int
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("term table: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("term table: no years defined")
	}

	days := make(map[int][3]int, len(raw))
	for year, row := range raw {
		if len(row) != len(Terms) {
			return nil, fmt.Errorf("term table: year %d: expected %d start days, got %d", year, len(Terms), len(row))
		}
		days[year] = [3]int{row[0], row[1], row[2]}
	}
	return NewTable(days)
}

// LoadTable reads a YAML term table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseTable(data)
}

// DefaultTable returns the table compiled into the binary.
func DefaultTable() *Table {
	t, err := ParseTable(defaultTableYAML)
	if err != nil {
		panic(err)
	}
	return t
}

// Years returns the academic years present in the table, ascending.
func (t *Table) Years() []int {
	years := make([]int, 0, len(t.days))
	for y := range t.days {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Has reports whether year is covered by the table.
func (t *Table) Has(year int) bool {
	_, ok := t.days[year]
	return ok
}

// Start returns the first day of Full Term for tm in the academic year
// beginning in Michaelmas of year.
func (t *Table) Start(year int, tm Term) (time.Time, error) {
	if !tm.Valid() {
		return time.Time{}, fmt.Errorf("%w: %s", ErrLookup, tm)
	}
	row, ok := t.days[year]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: no Full Term dates for academic year %d", ErrLookup, year)
	}
	return time.Date(year+tm.yearOffset(), tm.Month(), row[tm], 0, 0, 0, 0, time.UTC), nil
}
