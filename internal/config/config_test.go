package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := &Config{
		DefaultProfile: "work",
		OwnerID:        "u1",
		Daemon: Daemon{
			DrainIntervalMS:        500,
			UploadTimeoutMS:        3000,
			BatchSize:              10,
			MaxConsecutiveFailures: 3,
		},
		Remote: Remote{Backend: "memory"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *cfg {
		t.Errorf("got %+v, want %+v", got, cfg)
	}
}

func TestSaveFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{OwnerID: "u1"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 600", perm)
	}
}

func TestLoadAppliesDefaultsForAbsentFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("owner_id = \"u1\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OwnerID != "u1" {
		t.Errorf("owner_id = %q, want u1", cfg.OwnerID)
	}
	if cfg.Daemon.DrainIntervalMS != 2000 || cfg.Daemon.BatchSize != 50 {
		t.Errorf("daemon defaults not applied: %+v", cfg.Daemon)
	}
	if cfg.Remote.Backend != "memory" {
		t.Errorf("backend = %q, want memory", cfg.Remote.Backend)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
	if cfg.Daemon.DrainIntervalMS != 2000 {
		t.Errorf("drain interval = %d, want default 2000", cfg.Daemon.DrainIntervalMS)
	}
	if cfg.OwnerID != "" {
		t.Errorf("owner_id = %q, want empty", cfg.OwnerID)
	}
}
