package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DefaultDatabasePath, cfg.GetDatabasePath())
	assert.Equal(t, time.Second, cfg.Boss.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.Boss.MaxBackoff())
	assert.Equal(t, 30*time.Second, cfg.Boss.NotifyLease())
	assert.Equal(t, 24*time.Hour, cfg.Boss.ArchiveAfter())
	assert.Equal(t, 1, cfg.Boss.BatchSize)
	assert.Equal(t, "report", cfg.Boss.TerminalPolicy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, "unknown database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }, "database.dsn is required"},
		{"zero poll interval", func(c *Config) { c.Boss.PollIntervalMS = 0 }, "poll_interval_ms"},
		{"negative backoff", func(c *Config) { c.Boss.MaxBackoffMS = -1 }, "max_backoff_ms must be >= 0"},
		{"backoff below interval", func(c *Config) { c.Boss.MaxBackoffMS = 10 }, "must be >= boss.poll_interval_ms"},
		{"zero batch", func(c *Config) { c.Boss.BatchSize = 0 }, "batch_size"},
		{"negative concurrency", func(c *Config) { c.Boss.Concurrency = -2 }, "concurrency"},
		{"zero lease", func(c *Config) { c.Boss.NotifyLeaseSeconds = 0 }, "notify_lease_seconds"},
		{"bad policy", func(c *Config) { c.Boss.TerminalPolicy = "explode" }, "terminal_policy"},
		{"negative archive age", func(c *Config) { c.Boss.ArchiveAfterHours = -1 }, "archive_after_hours"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("postgres with dsn", func(t *testing.T) {
		cfg := Default()
		cfg.Database.Driver = DriverPostgres
		cfg.Database.DSN = "postgres://localhost/boss"
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boss.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
path = "/var/lib/boss/queue.db"

[boss]
poll_interval_ms = 250
batch_size = 8
terminal_policy = "ignore"
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/boss/queue.db", cfg.Database.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Boss.PollInterval())
	assert.Equal(t, 8, cfg.Boss.BatchSize)
	assert.Equal(t, "ignore", cfg.Boss.TerminalPolicy)
	// Untouched keys keep their defaults
	assert.Equal(t, 30, cfg.Boss.NotifyLeaseSeconds)
}

func TestLoadFromFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boss.toml")
	require.NoError(t, os.WriteFile(path, []byte("[boss]\nbatch_size = 0\n"), 0644))

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boss.toml")
	require.NoError(t, os.WriteFile(path, []byte("[boss]\nbatch_size = 4\n"), 0644))
	t.Setenv("BOSS_BOSS_BATCH_SIZE", "16")
	t.Setenv("BOSS_DATABASE_PATH", "/tmp/env.db")

	v := viper.New()
	bindEnv(v)
	SetDefaults(v)
	mergeConfigFiles(v, []string{path, filepath.Join(t.TempDir(), "missing.toml")})

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Boss.BatchSize)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
}

func TestMergeConfigFilesPrecedence(t *testing.T) {
	dir := t.TempDir()
	system := filepath.Join(dir, "system.toml")
	project := filepath.Join(dir, "project.toml")
	require.NoError(t, os.WriteFile(system, []byte("[boss]\nbatch_size = 2\nconcurrency = 3\n"), 0644))
	require.NoError(t, os.WriteFile(project, []byte("[boss]\nbatch_size = 5\n"), 0644))

	v := newDefaultsOnly()
	mergeConfigFiles(v, []string{system, project})

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Boss.BatchSize, "later file wins")
	assert.Equal(t, 3, cfg.Boss.Concurrency, "earlier file fills gaps")
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Boss.BatchSize = 12
	cfg.Metrics.Addr = ":9090"

	require.NoError(t, Write(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Boss.BatchSize)
	assert.Equal(t, ":9090", loaded.Metrics.Addr)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestCheckFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boss.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[boss]
batch_size = 2
pol_interval_ms = 50

[server]
port = 8080
`), 0644))

	unknown, err := CheckFile(path)
	require.NoError(t, err)
	assert.Contains(t, unknown, "boss.pol_interval_ms")
	assert.Contains(t, unknown, "server")
	assert.NotContains(t, unknown, "boss.batch_size")
}

func TestCheckFileParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boss.toml")
	require.NoError(t, os.WriteFile(path, []byte("[boss\n"), 0644))

	_, err := CheckFile(path)
	assert.Error(t, err)
}

func TestLoadCaches(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	first, err := Load()
	require.NoError(t, err)
	second, err := Load()
	require.NoError(t, err)
	assert.Same(t, first, second)
}
