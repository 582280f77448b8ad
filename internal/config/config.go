package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	appLog "termcal/internal/log"
	"termcal/internal/term"
)

// CalendarConfig controls how occurrences are written as iCalendar.
type CalendarConfig struct {
	// Name is written as X-WR-CALNAME.
	Name string `yaml:"name" json:"name"`

	// ProductID is the PRODID of generated calendars.
	ProductID string `yaml:"product_id" json:"product_id"`

	// Timezone is an IANA zone written as TZID on timed events. Times are
	// never converted; if empty, timed events are floating local times.
	Timezone string `yaml:"timezone" json:"timezone"`

	// EventMinutes is the length of events that have a start time.
	EventMinutes int `yaml:"event_minutes" json:"event_minutes"`

	// CollapseRuns writes consecutive weekly occurrences of one event as a
	// single VEVENT with an RRULE instead of one VEVENT per date.
	CollapseRuns bool `yaml:"collapse_runs" json:"collapse_runs"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for serve mode.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ServeConfig configures the optional HTTP server.
type ServeConfig struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Refresh is a cron-style schedule (e.g. "@hourly", "*/15 * * * *")
	// on which the calendar is rebuilt from its input.
	Refresh string `yaml:"refresh" json:"refresh"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// FetchConfig configures downloading of remote event lists.
type FetchConfig struct {
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	// TermTable is an optional YAML file replacing the built-in Full Term
	// start dates.
	TermTable string `yaml:"term_table" json:"term_table"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// SkipInvalid logs and skips unparsable input lines instead of failing
	// the whole run.
	SkipInvalid bool `yaml:"skip_invalid" json:"skip_invalid"`

	Calendar CalendarConfig `yaml:"calendar" json:"calendar"`
	Serve    ServeConfig    `yaml:"serve" json:"serve"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Calendar: CalendarConfig{
			Name:         "Term dates",
			ProductID:    "-//termcal//termcal//EN",
			EventMinutes: 60,
		},
		Serve: ServeConfig{
			Listen:  "127.0.0.1:8080",
			Refresh: "@hourly",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partial
// config files behave like complete ones.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if _, err := appLog.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Calendar.Name == "" {
		c.Calendar.Name = def.Calendar.Name
	}
	if c.Calendar.ProductID == "" {
		c.Calendar.ProductID = def.Calendar.ProductID
	}
	if c.Calendar.EventMinutes <= 0 {
		c.Calendar.EventMinutes = def.Calendar.EventMinutes
	}
	if c.Serve.Listen == "" {
		c.Serve.Listen = def.Serve.Listen
	}
	if c.Serve.Refresh == "" {
		c.Serve.Refresh = def.Serve.Refresh
	}
	// Half-configured credentials disable auth rather than lock everyone out.
	if a := c.Serve.BasicAuth; a != nil && (a.Username == "" || a.Password == "") {
		c.Serve.BasicAuth = nil
	}
}

// Validate checks values that Normalize cannot repair.
func (c *Config) Validate() error {
	if c.Calendar.Timezone != "" {
		if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
			return fmt.Errorf("calendar.timezone: %w", err)
		}
	}
	return nil
}

// Table returns the configured term table, or the built-in one when
// no file is set.
func (c *Config) Table() (*term.Table, error) {
	if c.TermTable == "" {
		return term.DefaultTable(), nil
	}
	t, err := term.LoadTable(c.TermTable)
	if err != nil {
		return nil, fmt.Errorf("term_table %s: %w", c.TermTable, err)
	}
	return t, nil
}

// Load loads configuration from the given YAML path.
//
// An empty path or a missing file yields the defaults. Use Save to write
// a starting config.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			appLog.Debug("config file not found, using defaults", "config_path", path)
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML.
//
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Final file permissions are 0600 (it may hold credentials).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0o600)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".termcal-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
