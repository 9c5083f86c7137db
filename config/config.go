// Package config loads boss configuration from TOML files and BOSS_*
// environment variables using viper.
package config

import "time"

// Config represents the boss configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Boss     BossConfig     `mapstructure:"boss" toml:"boss"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" toml:"metrics"`
}

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects the backing store
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" toml:"driver"` // sqlite (default) or postgres
	Path   string `mapstructure:"path" toml:"path"`     // SQLite file path
	DSN    string `mapstructure:"dsn" toml:"dsn"`       // PostgreSQL connection URL
}

// BossConfig configures the queue engines
type BossConfig struct {
	PollIntervalMS     int    `mapstructure:"poll_interval_ms" toml:"poll_interval_ms"`         // Delay between ticks while work is found
	MaxBackoffMS       int    `mapstructure:"max_backoff_ms" toml:"max_backoff_ms"`             // Cap for idle/error backoff (0 = fixed interval)
	BatchSize          int    `mapstructure:"batch_size" toml:"batch_size"`                     // Jobs claimed per tick
	Concurrency        int    `mapstructure:"concurrency" toml:"concurrency"`                   // In-flight handlers per subscription (0 = batch size)
	NotifyLeaseSeconds int    `mapstructure:"notify_lease_seconds" toml:"notify_lease_seconds"` // Completion notification claim lease
	TerminalPolicy     string `mapstructure:"terminal_policy" toml:"terminal_policy"`           // report | ignore
	ArchiveAfterHours  int    `mapstructure:"archive_after_hours" toml:"archive_after_hours"`   // Default age for `boss archive`
	ArchiveUnnotified  bool   `mapstructure:"archive_unnotified" toml:"archive_unnotified"`     // Archive jobs no listener has seen
}

// LogConfig configures logger output
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json"`
	Theme string `mapstructure:"theme" toml:"theme"` // everforest, gruvbox
}

// MetricsConfig configures the Prometheus endpoint served by `boss work`
type MetricsConfig struct {
	Addr string `mapstructure:"addr" toml:"addr"` // e.g. ":9090"; empty disables the endpoint
}

// PollInterval returns the configured poll interval as a duration
func (b BossConfig) PollInterval() time.Duration {
	return time.Duration(b.PollIntervalMS) * time.Millisecond
}

// MaxBackoff returns the configured backoff cap as a duration
func (b BossConfig) MaxBackoff() time.Duration {
	return time.Duration(b.MaxBackoffMS) * time.Millisecond
}

// NotifyLease returns the configured notification lease as a duration
func (b BossConfig) NotifyLease() time.Duration {
	return time.Duration(b.NotifyLeaseSeconds) * time.Second
}

// ArchiveAfter returns the configured archive age as a duration
func (b BossConfig) ArchiveAfter() time.Duration {
	return time.Duration(b.ArchiveAfterHours) * time.Hour
}

// GetDatabasePath returns the configured SQLite path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}
