// Package config loads and saves the application configuration. Settings
// live in a YAML file; credentials come from the environment (a .env file is
// honored) and never touch the config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig selects and locates the remote calendar provider.
type ProviderConfig struct {
	// Kind is "", "rest", "google" or "caldav"; empty disables sync.
	Kind string `yaml:"kind"`
	// BaseURL is the events API root for kind "rest", or the server endpoint
	// for kind "caldav".
	BaseURL string `yaml:"base_url,omitempty"`
	// CalendarID is the Google calendar id (kind "google"); defaults to
	// "primary".
	CalendarID string `yaml:"calendar_id,omitempty"`
	// CalendarName is the collection display name for kind "caldav".
	CalendarName string `yaml:"calendar_name,omitempty"`
	// TokenFile is the stored OAuth token for kind "google".
	TokenFile string `yaml:"token_file,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the API server.
	Listen string `yaml:"listen"`

	// Timezone is the IANA display timezone (e.g. "Europe/Lisbon").
	Timezone string `yaml:"timezone"`

	// WeekStart is the first day of the week: "sunday" or "monday".
	WeekStart string `yaml:"week_start"`

	// HourHeight and MinEventHeight are the day-grid rendering constants in
	// pixels.
	HourHeight     float64 `yaml:"hour_height"`
	MinEventHeight float64 `yaml:"min_event_height"`

	// StorePath is the SQLite database path; empty selects the in-memory
	// store.
	StorePath string `yaml:"store_path"`

	// SyncMinutes is the periodic reconciliation cadence.
	SyncMinutes int `yaml:"sync_minutes"`

	// DragSnapMinutes is the grid drag candidates snap to.
	DragSnapMinutes int `yaml:"drag_snap_minutes"`

	Provider ProviderConfig `yaml:"provider"`
}

// DefaultConfig returns the in-memory defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		Timezone:        "UTC",
		WeekStart:       "sunday",
		HourHeight:      60,
		MinEventHeight:  20,
		StorePath:       "./var/plancal.db",
		SyncMinutes:     5,
		DragSnapMinutes: 15,
	}
}

// Normalize fills missing or out-of-range values so partially written
// configs still behave.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	switch c.WeekStart {
	case "sunday", "monday":
	default:
		c.WeekStart = d.WeekStart
	}
	if c.HourHeight <= 0 {
		c.HourHeight = d.HourHeight
	}
	if c.MinEventHeight <= 0 {
		c.MinEventHeight = d.MinEventHeight
	}
	if c.SyncMinutes <= 0 {
		c.SyncMinutes = d.SyncMinutes
	}
	if c.DragSnapMinutes <= 0 {
		c.DragSnapMinutes = d.DragSnapMinutes
	}
}

// WeekStartDay maps the configured week start onto time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SyncInterval returns the cadence as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncMinutes) * time.Minute
}

// Load reads the YAML config at path. A missing file is a first run: the
// defaults are written there and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".plancal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
