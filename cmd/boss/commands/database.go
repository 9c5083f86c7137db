package commands

import (
	"database/sql"

	"github.com/teranos/boss/boss"
	"github.com/teranos/boss/config"
	"github.com/teranos/boss/db"
	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/logger"
	"github.com/teranos/boss/metrics"
)

var (
	// ConfigPath overrides the config file cascade when set (--config)
	ConfigPath string
	// Verbosity is the -v count of the running command
	Verbosity int
)

// loadConfig reads --config if given, otherwise the default cascade, and
// applies the log settings found there.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if ConfigPath != "" {
		cfg, err = config.LoadFromFile(ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	logger.SetTheme(cfg.Log.Theme)
	if cfg.Log.JSON && !logger.JSONOutput {
		if err := logger.Initialize(true, Verbosity); err != nil {
			return nil, errors.Wrap(err, "failed to switch to JSON logs")
		}
	}
	return cfg, nil
}

// openDatabase connects to the configured database and applies migrations
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := db.Connect(cfg.Database.Driver, cfg.GetDatabasePath(), cfg.Database.DSN, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", cfg.Database.Driver)
	}
	return database, nil
}

// engineConfig translates file configuration into engine defaults
func engineConfig(cfg *config.Config, collector *metrics.Collector) (boss.Config, error) {
	policy, err := boss.ParseTerminalPolicy(cfg.Boss.TerminalPolicy)
	if err != nil {
		return boss.Config{}, err
	}
	return boss.Config{
		PollInterval:      cfg.Boss.PollInterval(),
		MaxBackoff:        cfg.Boss.MaxBackoff(),
		BatchSize:         cfg.Boss.BatchSize,
		Concurrency:       cfg.Boss.Concurrency,
		NotifyLease:       cfg.Boss.NotifyLease(),
		TerminalPolicy:    policy,
		ArchiveUnnotified: cfg.Boss.ArchiveUnnotified,
		Metrics:           collector,
	}, nil
}

// session bundles what a command needs to talk to the queue
type session struct {
	cfg  *config.Config
	db   *sql.DB
	boss *boss.Boss
}

func (s *session) Close() error {
	return s.db.Close()
}

// openSession loads config, opens the database and builds a Boss.
// collector may be nil.
func openSession(collector *metrics.Collector) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	engineCfg, err := engineConfig(cfg, collector)
	if err != nil {
		return nil, err
	}

	dialect, err := boss.DialectFor(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	store := boss.NewSQLStore(database, dialect)
	return &session{
		cfg:  cfg,
		db:   database,
		boss: boss.New(store, engineCfg, logger.Logger),
	}, nil
}
