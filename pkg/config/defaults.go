package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/pmpwsk/cocoding/pkg/store"
)

// DefaultTokenTTL is the default login token lifetime (90 days).
const DefaultTokenTTL = 90 * 24 * time.Hour

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	cfg.Database.ApplyDefaults()
	applyStateDefaults(&cfg.State)
	cfg.Server.ApplyDefaults()
	cfg.Server.MetricsEnabled = cfg.Metrics.Enabled
	applyWorkerDefaults(cfg)
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = DefaultTokenTTL
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyStateDefaults sets the state store defaults. The directory sits next
// to the default SQLite database unless configured.
func applyStateDefaults(cfg *StateConfig) {
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(getConfigDir(), "state")
	}
}

// applyWorkerDefaults sets persistence worker defaults.
func applyWorkerDefaults(cfg *Config) {
	if cfg.Worker.Interval == 0 {
		cfg.Worker.Interval = time.Minute
	}
	if cfg.Worker.ReconcileEvery == 0 {
		cfg.Worker.ReconcileEvery = 10
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: store.Config{
			Type: store.DatabaseTypeSQLite,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
