// Package generate runs the whole input-to-calendar pipeline.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"termcal/internal/config"
	"termcal/internal/ics"
	"termcal/internal/input"
	appLog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/term"
)

// Generator turns an event list into a calendar for one academic year.
type Generator struct {
	cfg     *config.Config
	table   *term.Table
	fetcher *input.Fetcher
}

// Result is the output of one run.
type Result struct {
	Year        int
	Events      []model.Event
	Occurrences []model.Occurrence
	Calendar    *ical.Calendar

	// Skipped holds the input lines ignored because SkipInvalid is set.
	Skipped []error
}

func New(cfg *config.Config, table *term.Table) *Generator {
	return &Generator{
		cfg:     cfg,
		table:   table,
		fetcher: input.NewFetcher(cfg.Fetch.CacheDir),
	}
}

// Run reads source (a path or URL) and builds the calendar for year.
// Unparsable lines fail the run unless the config says to skip them; a
// year missing from the term table always fails.
func (g *Generator) Run(ctx context.Context, source string, year int) (*Result, error) {
	if !g.table.Has(year) {
		return nil, fmt.Errorf("%w: academic year %d is not in the term table (known: %v)",
			term.ErrLookup, year, g.table.Years())
	}

	in, err := input.Load(ctx, source, g.fetcher)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	res := &Result{Year: year, Events: in.Events}
	if len(in.Invalid) > 0 {
		if !g.cfg.SkipInvalid {
			return nil, errors.Join(in.Invalid...)
		}
		for _, e := range in.Invalid {
			appLog.Warn("skipping invalid line", "source", source, "err", e)
		}
		res.Skipped = in.Invalid
	}

	duration := time.Duration(g.cfg.Calendar.EventMinutes) * time.Minute
	res.Occurrences, err = ics.Occurrences(in.Events, g.table, year, duration)
	if err != nil {
		return nil, err
	}

	res.Calendar = ics.Build(
		ics.Entries(res.Occurrences, g.cfg.Calendar.CollapseRuns),
		ics.BuildOptions{CalendarConfig: g.cfg.Calendar},
	)

	appLog.Info("calendar generated",
		"source", source,
		"year", year,
		"events", len(res.Events),
		"occurrences", len(res.Occurrences),
		"skipped", len(res.Skipped),
	)
	return res, nil
}
