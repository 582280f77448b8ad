package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"termcal/internal/config"
	"termcal/internal/model"
)

func testSnapshot() *Snapshot {
	day := time.Date(2022, 10, 12, 0, 0, 0, 0, time.UTC)
	talk := time.Date(2023, 5, 9, 15, 0, 0, 0, time.UTC)
	return &Snapshot{
		Year:     2022,
		Calendar: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"),
		Occurrences: []model.Occurrence{
			{UID: "a@termcal", Summary: "Induction", Week: 1, AllDay: true, Start: day, End: day.AddDate(0, 0, 1)},
			{UID: "b@termcal", Summary: "Talks", Week: 2, Start: talk, End: talk.Add(time.Hour)},
		},
		BuiltAt: time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, cfg *config.Config, build BuildFunc) *Server {
	t.Helper()
	s := NewServer(cfg, build)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func get(t *testing.T, h http.Handler, target string, auth ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCalendarEndpoint(t *testing.T) {
	s := newTestServer(t, config.DefaultConfig(), func(context.Context) (*Snapshot, error) {
		return testSnapshot(), nil
	})

	rec := get(t, s.Handler(), "/calendar.ics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "BEGIN:VCALENDAR") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestEventsEndpoint(t *testing.T) {
	s := newTestServer(t, config.DefaultConfig(), func(context.Context) (*Snapshot, error) {
		return testSnapshot(), nil
	})

	var resp eventsResponse
	rec := get(t, s.Handler(), "/api/events")
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Year != 2022 || len(resp.Occurrences) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Occurrences[0].Start != "2022-10-12" || resp.Occurrences[1].Start != "2023-05-09T15:00:00" {
		t.Errorf("starts = %q, %q", resp.Occurrences[0].Start, resp.Occurrences[1].Start)
	}

	rec = get(t, s.Handler(), "/api/events?from=2023-01-01&to=2023-05-09")
	resp = eventsResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Occurrences) != 1 || resp.Occurrences[0].Summary != "Talks" {
		t.Errorf("filtered = %+v", resp.Occurrences)
	}

	for _, bad := range []string{"/api/events?from=nope", "/api/events?to=2023-13-01", "/api/events?from=2023-02-01&to=2023-01-01"} {
		if rec := get(t, s.Handler(), bad); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestRefreshKeepsPreviousSnapshot(t *testing.T) {
	calls := 0
	s := newTestServer(t, config.DefaultConfig(), func(context.Context) (*Snapshot, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("input vanished")
		}
		return testSnapshot(), nil
	})

	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("second refresh should fail")
	}

	var resp eventsResponse
	rec := get(t, s.Handler(), "/api/events")
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Occurrences) != 2 || resp.LastError != "input vanished" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestNotBuiltYet(t *testing.T) {
	s := NewServer(config.DefaultConfig(), nil)
	if rec := get(t, s.Handler(), "/calendar.ics"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if rec := get(t, s.Handler(), "/health"); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Serve.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s := newTestServer(t, cfg, func(context.Context) (*Snapshot, error) {
		return testSnapshot(), nil
	})
	h := s.Handler()

	if rec := get(t, h, "/calendar.ics"); rec.Code != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d", rec.Code)
	}
	if rec := get(t, h, "/calendar.ics", "admin", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d", rec.Code)
	}
	if rec := get(t, h, "/calendar.ics", "admin", "secret"); rec.Code != http.StatusOK {
		t.Errorf("good credentials: status = %d", rec.Code)
	}
	if rec := get(t, h, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health should not need auth: status = %d", rec.Code)
	}
}
