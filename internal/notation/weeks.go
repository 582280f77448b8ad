package notation

import (
	"fmt"
	"strconv"
	"strings"

	"termcal/internal/term"
)

// maxRangeWeeks bounds how many weeks one "A-B" range may expand to.
const maxRangeWeeks = term.MaxWeek

// Conventional eight-week Full Term.
var (
	oddWeeks  = term.Weeks{1, 3, 5, 7}
	evenWeeks = term.Weeks{2, 4, 6, 8}
)

// ParseWeeks parses a week-number expression: "odd", "even", or a comma
// separated list of integers and inclusive ranges such as "-1,3,6-8".
// The result keeps the order in which weeks appear, duplicates included.
func ParseWeeks(text string) (term.Weeks, error) {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "odd":
		return append(term.Weeks(nil), oddWeeks...), nil
	case "even":
		return append(term.Weeks(nil), evenWeeks...), nil
	}

	var weeks term.Weeks
	for _, tok := range strings.Split(text, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, fmt.Errorf("%w: empty week in %q", ErrParse, text)
		}

		// A '-' in first position is a sign, not a range separator.
		if i := strings.Index(tok[1:], "-"); i >= 0 {
			r, err := parseRange(tok[:i+1], tok[i+2:])
			if err != nil {
				return nil, fmt.Errorf("week range %q: %w", tok, err)
			}
			weeks = append(weeks, r...)
			continue
		}

		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: week %q is not a number", ErrParse, tok)
		}
		weeks = append(weeks, n)
	}
	return weeks, nil
}

func parseRange(from, to string) (term.Weeks, error) {
	a, err := strconv.Atoi(from)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q is not a number", ErrParse, from)
	}
	b, err := strconv.Atoi(to)
	if err != nil {
		return nil, fmt.Errorf("%w: end %q is not a number", ErrParse, to)
	}
	if a > b {
		return nil, fmt.Errorf("%w: start %d is after end %d", ErrParse, a, b)
	}

	// b-a can overflow int; with a <= b the unsigned difference is exact.
	span := uint(b) - uint(a)
	if span >= maxRangeWeeks {
		return nil, fmt.Errorf("%w: range %d-%d spans more than %d weeks", ErrParse, a, b, maxRangeWeeks)
	}

	out := make(term.Weeks, 0, span+1)
	for i := 0; i < int(span)+1; i++ {
		out = append(out, a+i)
	}
	return out, nil
}
