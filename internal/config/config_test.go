package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "plancal.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.SyncMinutes != 5 {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config file perm = %o, want 600", perm)
	}
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plancal.yaml")
	body := "listen: \"0.0.0.0:9090\"\nweek_start: friday\nsync_minutes: -3\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "0.0.0.0:9090" {
		t.Errorf("explicit listen overridden: %q", cfg.Listen)
	}
	if cfg.WeekStart != "sunday" {
		t.Errorf("unknown week_start not normalized: %q", cfg.WeekStart)
	}
	if cfg.SyncMinutes != 5 {
		t.Errorf("invalid sync_minutes not normalized: %d", cfg.SyncMinutes)
	}
}

func TestWeekStartDay(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.WeekStartDay() != time.Sunday {
		t.Errorf("default week start = %v", cfg.WeekStartDay())
	}
	cfg.WeekStart = "monday"
	if cfg.WeekStartDay() != time.Monday {
		t.Errorf("monday week start = %v", cfg.WeekStartDay())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plancal.yaml")
	cfg := DefaultConfig()
	cfg.Provider = ProviderConfig{Kind: "rest", BaseURL: "https://cal.example.com/api"}

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Provider.Kind != "rest" || got.Provider.BaseURL != "https://cal.example.com/api" {
		t.Errorf("provider config lost in round trip: %+v", got.Provider)
	}
}
