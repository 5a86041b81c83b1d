package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/go-tangra/go-tangra-cpucaps/internal/cpucaps"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cpucaps.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9560" {
		t.Errorf("Listen = %q, want :9560", cfg.Listen)
	}
	if !cfg.EnableSwagger {
		t.Error("EnableSwagger = false, want true")
	}
	if cfg.DatabasePath != "cpucaps.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.PurgeInterval != 24*time.Hour {
		t.Errorf("PurgeInterval = %v, want 24h", cfg.PurgeInterval)
	}
	if cfg.SnapshotInterval != 0 {
		t.Errorf("SnapshotInterval = %v, want 0", cfg.SnapshotInterval)
	}
	if cfg.Required() != cpucaps.RequiredVersion() {
		t.Errorf("Required() = %v, want %v", cfg.Required(), cpucaps.RequiredVersion())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":8000"
enable_swagger: false
database: /var/lib/cpucaps/history.db
retention_days: 30
purge_interval: 6h
api_secret: s3cret
snapshot_interval: 15m
required_version: "2.1"
`)
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8000" || cfg.EnableSwagger || cfg.DatabasePath != "/var/lib/cpucaps/history.db" {
		t.Errorf("Load = %+v", cfg)
	}
	if cfg.RetentionDays != 30 || cfg.PurgeInterval != 6*time.Hour || cfg.SnapshotInterval != 15*time.Minute {
		t.Errorf("durations = %d days, %v, %v", cfg.RetentionDays, cfg.PurgeInterval, cfg.SnapshotInterval)
	}
	if cfg.ApiSecret != "s3cret" {
		t.Errorf("ApiSecret = %q", cfg.ApiSecret)
	}
	if want := (cpucaps.Version{Major: 2, Minor: 1}); cfg.Required() != want {
		t.Errorf("Required() = %v, want %v", cfg.Required(), want)
	}
}

func TestLoadFlagsOverride(t *testing.T) {
	path := writeConfig(t, "listen: \":8000\"\ndatabase: file.db\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("listen", ":1", "")
	flags.String("db", "flag.db", "")
	if err := flags.Parse([]string{"--listen", ":7000"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":7000" {
		t.Errorf("Listen = %q, want flag value :7000", cfg.Listen)
	}
	if cfg.DatabasePath != "file.db" {
		t.Errorf("DatabasePath = %q, want file value", cfg.DatabasePath)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CPUCAPS_API_SECRET", "from-env")
	cfg, err := Load(writeConfig(t, ""), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ApiSecret != "from-env" {
		t.Errorf("ApiSecret = %q, want from-env", cfg.ApiSecret)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("Load(missing explicit file) succeeded")
	}
	if _, err := Load(writeConfig(t, "required_version: two\n"), nil); err == nil {
		t.Error("Load(bad required_version) succeeded")
	}
}

func TestLoadIntervals(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"retention with zero purge interval", "retention_days: 7\npurge_interval: 0s\n", false},
		{"retention with negative purge interval", "retention_days: 7\npurge_interval: -1h\n", false},
		{"retention with default purge interval", "retention_days: 7\n", true},
		{"zero purge interval without retention", "purge_interval: 0s\n", true},
		{"negative retention", "retention_days: -1\n", false},
		{"negative snapshot interval", "snapshot_interval: -5m\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			if tt.ok && err != nil {
				t.Errorf("Load() error = %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Load() succeeded")
			}
		})
	}
}

func TestLoadEnvPurgeInterval(t *testing.T) {
	t.Setenv("CPUCAPS_RETENTION_DAYS", "7")
	t.Setenv("CPUCAPS_PURGE_INTERVAL", "0s")
	if _, err := Load(writeConfig(t, "listen: 127.0.0.1:0\n"), nil); err == nil {
		t.Error("Load() succeeded with retention set and purge interval 0s")
	}
}
