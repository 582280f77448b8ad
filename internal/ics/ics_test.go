package ics

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"termcal/internal/config"
	"termcal/internal/model"
	"termcal/internal/notation"
	"termcal/internal/term"
)

var stamp = time.Date(2022, time.September, 1, 12, 0, 0, 0, time.UTC)

func mustEvents(t *testing.T, lines ...string) []model.Event {
	t.Helper()
	events := make([]model.Event, 0, len(lines))
	for i, line := range lines {
		ev, err := notation.ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q): %v", line, err)
		}
		ev.Line = i + 1
		events = append(events, ev)
	}
	return events
}

func buildOpts() BuildOptions {
	return BuildOptions{CalendarConfig: config.DefaultConfig().Calendar, Stamp: stamp}
}

func TestOccurrences(t *testing.T) {
	events := mustEvents(t,
		"E Tue 5,2 15:00; Talks",
		"M Wed 1; Induction",
	)
	occs, err := Occurrences(events, term.DefaultTable(), 2022, 90*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(occs))
	}

	if occs[0].Week != 5 || occs[0].Start.Format(time.DateTime) != "2023-05-30 15:00:00" {
		t.Errorf("occs[0] = %+v", occs[0])
	}
	if occs[0].End.Sub(occs[0].Start) != 90*time.Minute {
		t.Errorf("timed duration = %s", occs[0].End.Sub(occs[0].Start))
	}
	if occs[1].Week != 2 || occs[1].Start.Format(time.DateOnly) != "2023-05-09" {
		t.Errorf("occs[1] = %+v", occs[1])
	}
	if !occs[2].AllDay || occs[2].Start.Format(time.DateOnly) != "2022-10-12" || occs[2].End.Format(time.DateOnly) != "2022-10-13" {
		t.Errorf("occs[2] = %+v", occs[2])
	}
}

func TestOccurrencesUnknownYear(t *testing.T) {
	events := mustEvents(t, "M Wed 1; Induction")
	_, err := Occurrences(events, term.DefaultTable(), 2040, time.Hour)
	if !errors.Is(err, term.ErrLookup) {
		t.Fatalf("error = %v, want ErrLookup", err)
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error %q should name the line", err)
	}
}

func TestUIDStable(t *testing.T) {
	w := term.When{Time: time.Date(2022, 10, 12, 0, 0, 0, 0, time.UTC), AllDay: true}
	a := UID("Induction", w)
	if a != UID("Induction", w) {
		t.Error("UID is not deterministic")
	}
	if a == UID("Induction ", w) || a == UID("Induction", term.When{Time: w.Time}) {
		t.Error("UID ignores description or time")
	}
	if !strings.HasSuffix(a, "@termcal") {
		t.Errorf("UID %q lacks domain", a)
	}
}

func TestBuildAndParseRoundTrip(t *testing.T) {
	events := mustEvents(t,
		"E Tue 2,5 15:00; Talks",
		"M Wed 1; Induction",
		"L Mon 3,3; Repeated week",
	)
	occs, err := Occurrences(events, term.DefaultTable(), 2022, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	cal := Build(Entries(occs, false), buildOpts())
	if n := len(cal.Events()); n != 4 {
		t.Fatalf("calendar has %d events, want 4 (duplicate week dropped)", n)
	}

	var buf bytes.Buffer
	if err := Serialize(&buf, cal); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	for _, want := range []string{
		"DTSTART:20230509T150000",
		"DTEND:20230509T160000",
		"DTSTART;VALUE=DATE:20221012",
		"SUMMARY:Induction",
		"X-WR-CALNAME:Term dates",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("serialized calendar missing %q:\n%s", want, text)
		}
	}

	parsed, err := ParseICS(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	res, err := ExpandOccurrences(parsed, ExpandConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 4 {
		t.Fatalf("read back %d occurrences, want 4", len(res.Occurrences))
	}
	for i, got := range res.Occurrences {
		want := occs[i]
		if got.UID != want.UID || got.Summary != want.Summary || got.AllDay != want.AllDay ||
			!got.Start.Equal(want.Start) || !got.End.Equal(want.End) {
			t.Errorf("occurrence %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestBuildWithTimezone(t *testing.T) {
	events := mustEvents(t, "E Tue 2 15:00; Talks")
	occs, err := Occurrences(events, term.DefaultTable(), 2022, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	opts := buildOpts()
	opts.Timezone = "Europe/London"

	var buf bytes.Buffer
	if err := Serialize(&buf, Build(Entries(occs, false), opts)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "DTSTART;TZID=Europe/London:20230509T150000") {
		t.Errorf("missing TZID start:\n%s", out)
	}
	// Every TZID needs a VTIMEZONE; 2023 has the March and October changes.
	for _, want := range []string{
		"BEGIN:VTIMEZONE",
		"TZID:Europe/London",
		"BEGIN:DAYLIGHT",
		"DTSTART:20230326T010000",
		"TZOFFSETFROM:+0000",
		"TZOFFSETTO:+0100",
		"TZNAME:BST",
		"DTSTART:20231029T020000",
		"TZNAME:GMT",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q:\n%s", want, out)
		}
	}

	parsed, err := ParseICS(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 1 || parsed[0].TZID != "Europe/London" || parsed[0].Start.Hour() != 15 {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestBuildTimezoneEdgeCases(t *testing.T) {
	timed := mustEvents(t, "M Tue 1-3 10:00; Lecture")
	occs, err := Occurrences(timed, term.DefaultTable(), 2022, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	opts := buildOpts()
	opts.Timezone = "Asia/Seoul"
	out := Build(Entries(occs, true), opts).Serialize()
	if strings.Count(out, "BEGIN:VTIMEZONE") != 1 || !strings.Contains(out, "TZOFFSETTO:+0900") || strings.Contains(out, "BEGIN:DAYLIGHT") {
		t.Errorf("fixed-offset zone:\n%s", out)
	}

	opts.Timezone = "Not/AZone"
	out = Build(Entries(occs, false), opts).Serialize()
	if strings.Contains(out, "TZID=") || strings.Contains(out, "BEGIN:VTIMEZONE") {
		t.Errorf("unknown zone should fall back to floating times:\n%s", out)
	}

	allDay := mustEvents(t, "M Wed 1; Induction")
	occs, err = Occurrences(allDay, term.DefaultTable(), 2022, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	opts.Timezone = "Europe/London"
	if out := Build(Entries(occs, false), opts).Serialize(); strings.Contains(out, "BEGIN:VTIMEZONE") {
		t.Errorf("all-day calendar needs no VTIMEZONE:\n%s", out)
	}
}

func TestUTCOffset(t *testing.T) {
	tests := []struct {
		sec  int
		want string
	}{
		{0, "+0000"},
		{3600, "+0100"},
		{-5 * 3600, "-0500"},
		{5*3600 + 1800, "+0530"},
	}
	for _, tt := range tests {
		if got := utcOffset(tt.sec); got != tt.want {
			t.Errorf("utcOffset(%d) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}

func TestEntriesCollapseRuns(t *testing.T) {
	events := mustEvents(t,
		"L Thu 1-4,6 11:00; Lecture",
		"L Thu 7; Lecture",
		"E Fri odd; Lab",
	)
	occs, err := Occurrences(events, term.DefaultTable(), 2022, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	entries := Entries(occs, true)
	// 1-4 collapse, 6 stands alone (timed) and 7 is all day, odd weeks never touch.
	if len(entries) != 7 {
		t.Fatalf("got %d entries, want 7: %+v", len(entries), entries)
	}
	if entries[0].Count != 4 || entries[0].RRule != "FREQ=WEEKLY;COUNT=4" {
		t.Errorf("first entry = %+v", entries[0])
	}
	for _, e := range entries[1:] {
		if e.Count != 1 || e.RRule != "" {
			t.Errorf("entry %+v should not be a series", e)
		}
	}

	var buf bytes.Buffer
	if err := Serialize(&buf, Build(entries, buildOpts())); err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseICS(&buf)
	if err != nil {
		t.Fatal(err)
	}
	res, err := ExpandOccurrences(parsed, ExpandConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != len(occs) {
		t.Fatalf("expanded %d occurrences, want %d", len(res.Occurrences), len(occs))
	}
	for i := range occs {
		if !res.Occurrences[i].Start.Equal(occs[i].Start) {
			t.Errorf("occurrence %d starts %s, want %s", i, res.Occurrences[i].Start, occs[i].Start)
		}
	}
}

func TestExpandRangeAndCap(t *testing.T) {
	start := time.Date(2023, 1, 19, 11, 0, 0, 0, time.UTC)
	events := []ParsedEvent{
		{UID: "a", Summary: "Weekly", Start: start, End: start.Add(time.Hour), RawRRule: "FREQ=WEEKLY"},
		{UID: "b", Summary: "Once", Start: start.AddDate(1, 0, 0), End: start.AddDate(1, 0, 0)},
		{UID: "c", Summary: "Broken", Start: start, End: start, RawRRule: "FREQ=NEVER"},
	}

	res, err := ExpandOccurrences(events, ExpandConfig{
		RangeStart: start.AddDate(0, 0, 7),
		RangeEnd:   start.AddDate(0, 0, 21),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 3 {
		t.Fatalf("in-range occurrences = %d, want 3", len(res.Occurrences))
	}

	res, err = ExpandOccurrences(events[:1], ExpandConfig{MaxOccurrencesPerEvent: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Occurrences) != 10 || len(res.TruncatedEvents) != 1 || res.TruncatedEvents[0] != "a" {
		t.Errorf("capped expansion = %d occurrences, truncated %v", len(res.Occurrences), res.TruncatedEvents)
	}

	if _, err := ExpandOccurrences(nil, ExpandConfig{RangeStart: start, RangeEnd: start.Add(-time.Hour)}); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestWriteFile(t *testing.T) {
	events := mustEvents(t, "M Wed 1; Induction")
	occs, err := Occurrences(events, term.DefaultTable(), 2022, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out", "term.ics")
	if err := WriteFile(path, Build(Entries(occs, false), buildOpts())); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "BEGIN:VCALENDAR") {
		t.Errorf("unexpected file contents:\n%s", data)
	}
}
