package config

import (
	"github.com/spf13/viper"
)

// DefaultDatabasePath is used when database.path is unset
const DefaultDatabasePath = "boss.db"

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("boss.poll_interval_ms", 1000)
	v.SetDefault("boss.max_backoff_ms", 10000)
	v.SetDefault("boss.batch_size", 1)
	v.SetDefault("boss.concurrency", 0)
	v.SetDefault("boss.notify_lease_seconds", 30)
	v.SetDefault("boss.terminal_policy", "report")
	v.SetDefault("boss.archive_after_hours", 24)
	v.SetDefault("boss.archive_unnotified", false)

	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", "everforest")

	v.SetDefault("metrics.addr", "")
}

// BindSensitiveEnvVars explicitly binds configuration that is commonly
// injected by deployment environments
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.dsn", "BOSS_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("database.path", "BOSS_DATABASE_PATH")
	_ = v.BindEnv("database.driver", "BOSS_DATABASE_DRIVER")
}

func newDefaultsOnly() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}
