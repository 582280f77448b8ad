package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"termcal/internal/config"
	"termcal/internal/ics"
	appLog "termcal/internal/log"
	"termcal/internal/model"
)

// Snapshot is one built calendar, served until the next rebuild.
type Snapshot struct {
	Year        int
	Calendar    []byte
	Occurrences []model.Occurrence
	BuiltAt     time.Time
}

// BuildFunc produces a fresh snapshot, typically by re-reading the input.
type BuildFunc func(ctx context.Context) (*Snapshot, error)

// Server serves the latest calendar snapshot over HTTP.
type Server struct {
	cfg   *config.Config
	build BuildFunc
	mux   *http.ServeMux

	mu      sync.RWMutex
	snap    *Snapshot
	lastErr error
}

// NewServer constructs a new Server. Call Refresh (or Run) before serving
// to load the first snapshot.
func NewServer(cfg *config.Config, build BuildFunc) *Server {
	s := &Server{
		cfg:   cfg,
		build: build,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Refresh rebuilds the snapshot. On failure the previous snapshot keeps
// being served.
func (s *Server) Refresh(ctx context.Context) error {
	snap, err := s.build(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		appLog.Error("calendar rebuild failed; serving previous snapshot", err)
		return err
	}
	s.snap = snap
	appLog.Info("calendar rebuilt", "year", snap.Year, "occurrences", len(snap.Occurrences))
	return nil
}

func (s *Server) snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.lastErr
}

// Run builds the first snapshot, schedules rebuilds on cfg.Serve.Refresh
// and serves HTTP until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Serve.Refresh, func() { _ = s.Refresh(ctx) }); err != nil {
		return err
	}
	c.Start()
	defer c.Stop()

	srv := &http.Server{
		Addr:              s.cfg.Serve.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Serve.Listen, "refresh", s.cfg.Serve.Refresh)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.cfg.Serve.BasicAuth != nil {
		appLog.Info("HTTP basic auth enabled")
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.Serve.BasicAuth.Username
	password := s.cfg.Serve.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="termcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	snap, _ := s.snapshot()
	if snap == nil {
		http.Error(w, "calendar not built yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	http.ServeContent(w, r, "calendar.ics", snap.BuiltAt, bytes.NewReader(snap.Calendar))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Year        int             `json:"year"`
	BuiltAt     time.Time       `json:"built_at"`
	LastError   string          `json:"last_error,omitempty"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

// occurrenceDTO is a JSON-friendly view of an occurrence. Times are wall
// clock, so they are rendered without an offset.
type occurrenceDTO struct {
	UID     string `json:"uid"`
	Summary string `json:"summary"`
	Week    int    `json:"week"`
	AllDay  bool   `json:"all_day"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

// handleEvents lists occurrences of the current snapshot.
//
// GET /api/events?from=2023-01-01&to=2023-03-31
//   - from, to: optional inclusive date bounds (YYYY-MM-DD)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap, lastErr := s.snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar not built yet")
		return
	}

	q := r.URL.Query()
	var cfg ics.ExpandConfig
	var err error
	if cfg.RangeStart, err = parseDate(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date")
		return
	}
	if cfg.RangeEnd, err = parseDate(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date")
		return
	}
	if !cfg.RangeEnd.IsZero() {
		// Inclusive of the whole "to" day.
		cfg.RangeEnd = cfg.RangeEnd.AddDate(0, 0, 1).Add(-time.Second)
	}
	if !cfg.RangeStart.IsZero() && !cfg.RangeEnd.IsZero() && cfg.RangeEnd.Before(cfg.RangeStart) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}

	resp := eventsResponse{
		Year:        snap.Year,
		BuiltAt:     snap.BuiltAt,
		Occurrences: make([]occurrenceDTO, 0, len(snap.Occurrences)),
	}
	if lastErr != nil {
		resp.LastError = lastErr.Error()
	}
	for _, occ := range snap.Occurrences {
		if !cfg.Contains(occ.Start) {
			continue
		}
		resp.Occurrences = append(resp.Occurrences, toDTO(occ))
	}

	writeJSON(w, http.StatusOK, resp)
}

func toDTO(occ model.Occurrence) occurrenceDTO {
	layout := "2006-01-02T15:04:05"
	if occ.AllDay {
		layout = time.DateOnly
	}
	return occurrenceDTO{
		UID:     occ.UID,
		Summary: occ.Summary,
		Week:    occ.Week,
		AllDay:  occ.AllDay,
		Start:   occ.Start.Format(layout),
		End:     occ.End.Format(layout),
	}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
