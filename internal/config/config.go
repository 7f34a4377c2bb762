package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.splitsync/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	OwnerID        string `toml:"owner_id"` // active signed-in user
	Daemon         Daemon `toml:"daemon"`
	Remote         Remote `toml:"remote"`
}

// Daemon tunes the upload coordinator's drain loop.
type Daemon struct {
	DrainIntervalMS        int `toml:"drain_interval_ms"`
	UploadTimeoutMS        int `toml:"upload_timeout_ms"`
	BatchSize              int `toml:"batch_size"`
	MaxConsecutiveFailures int `toml:"max_consecutive_failures"`
}

// Remote selects the remote document-store backend.
type Remote struct {
	Backend string `toml:"backend"`
}

func defaults() Config {
	return Config{
		Daemon: Daemon{
			DrainIntervalMS:        2000,
			UploadTimeoutMS:        15000,
			BatchSize:              50,
			MaxConsecutiveFailures: 5,
		},
		Remote: Remote{Backend: "memory"},
	}
}

// Load reads config from the given path, applying defaults for absent
// fields. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := defaults()
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to defaults when
// the file does not exist yet.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		def := defaults()
		return &def
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	def := defaults()
	if cfg.Daemon.DrainIntervalMS <= 0 {
		cfg.Daemon.DrainIntervalMS = def.Daemon.DrainIntervalMS
	}
	if cfg.Daemon.UploadTimeoutMS <= 0 {
		cfg.Daemon.UploadTimeoutMS = def.Daemon.UploadTimeoutMS
	}
	if cfg.Daemon.BatchSize <= 0 {
		cfg.Daemon.BatchSize = def.Daemon.BatchSize
	}
	if cfg.Daemon.MaxConsecutiveFailures <= 0 {
		cfg.Daemon.MaxConsecutiveFailures = def.Daemon.MaxConsecutiveFailures
	}
	if cfg.Remote.Backend == "" {
		cfg.Remote.Backend = def.Remote.Backend
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
