package input

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	appLog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/notation"
)

// LineError is a parse failure tied to its position in the input.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Result holds the events read from one input and the lines that could not
// be parsed. Whether invalid lines are fatal is up to the caller.
type Result struct {
	Events  []model.Event
	Invalid []error
}

// Read parses every event line from r. Blank lines and lines starting with
// '#' are skipped. The returned error is only set for I/O failures.
func Read(r io.Reader) (Result, error) {
	var res Result

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		ev, err := notation.ParseLine(text)
		if err != nil {
			res.Invalid = append(res.Invalid, &LineError{Line: lineNo, Text: text, Err: err})
			continue
		}
		ev.Line = lineNo
		res.Events = append(res.Events, ev)
	}
	if err := sc.Err(); err != nil {
		return res, err
	}

	appLog.Debug("input parsed", "lines", lineNo, "events", len(res.Events), "invalid", len(res.Invalid))
	return res, nil
}

// IsURL reports whether name should be fetched over HTTP rather than read
// from disk.
func IsURL(name string) bool {
	return strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://")
}

// Load reads events from a local file or, for http(s) names, through f.
func Load(ctx context.Context, name string, f *Fetcher) (Result, error) {
	if IsURL(name) {
		if f == nil {
			f = NewFetcher("")
		}
		res, err := f.FetchOne(ctx, name)
		if err != nil {
			return Result{}, err
		}
		return Read(bytes.NewReader(res.Body))
	}

	file, err := os.Open(name)
	if err != nil {
		return Result{}, err
	}
	defer file.Close()
	return Read(file)
}
