package mirror

import (
	"os"
	"time"
)

// Config configures the secondary store and the sync path.
type Config struct {
	URL               string
	Namespace         string
	Database          string
	User              string
	Password          string
	Timeout           time.Duration
	ReconcileInterval time.Duration
	ReconcileBatch    int
}

// Enabled reports whether a secondary store is configured.
func (c Config) Enabled() bool { return c.URL != "" }

// ConfigFromEnv reads mirror config from environment variables.
// An empty MIRROR_URL disables mirroring.
func ConfigFromEnv() Config {
	cfg := Config{
		URL:               os.Getenv("MIRROR_URL"),
		Namespace:         os.Getenv("MIRROR_NAMESPACE"),
		Database:          os.Getenv("MIRROR_DATABASE"),
		User:              os.Getenv("MIRROR_USER"),
		Password:          os.Getenv("MIRROR_PASSWORD"),
		Timeout:           2 * time.Second,
		ReconcileInterval: time.Minute,
		ReconcileBatch:    100,
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "pitchfork"
	}
	if cfg.Database == "" {
		cfg.Database = "brand"
	}
	if d, err := time.ParseDuration(os.Getenv("MIRROR_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}
	if d, err := time.ParseDuration(os.Getenv("MIRROR_RECONCILE_INTERVAL")); err == nil && d > 0 {
		cfg.ReconcileInterval = d
	}
	return cfg
}
