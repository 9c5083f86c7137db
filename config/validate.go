package config

import "github.com/teranos/boss/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required when database.driver is postgres")
		}
	default:
		return errors.WithHint(
			errors.Newf("unknown database.driver %q", c.Database.Driver),
			"supported drivers: sqlite, postgres",
		)
	}

	// Poll interval drives every engine loop; zero would spin
	if c.Boss.PollIntervalMS <= 0 {
		return errors.Newf("boss.poll_interval_ms must be > 0, got %d", c.Boss.PollIntervalMS)
	}
	// Max backoff: 0 = fixed interval, otherwise at least the poll interval
	if c.Boss.MaxBackoffMS < 0 {
		return errors.Newf("boss.max_backoff_ms must be >= 0, got %d", c.Boss.MaxBackoffMS)
	}
	if c.Boss.MaxBackoffMS > 0 && c.Boss.MaxBackoffMS < c.Boss.PollIntervalMS {
		return errors.Newf("boss.max_backoff_ms (%d) must be >= boss.poll_interval_ms (%d)",
			c.Boss.MaxBackoffMS, c.Boss.PollIntervalMS)
	}
	if c.Boss.BatchSize <= 0 {
		return errors.Newf("boss.batch_size must be > 0, got %d", c.Boss.BatchSize)
	}
	// Concurrency: 0 = same as batch size
	if c.Boss.Concurrency < 0 {
		return errors.Newf("boss.concurrency must be >= 0, got %d", c.Boss.Concurrency)
	}
	if c.Boss.NotifyLeaseSeconds <= 0 {
		return errors.Newf("boss.notify_lease_seconds must be > 0, got %d", c.Boss.NotifyLeaseSeconds)
	}
	switch c.Boss.TerminalPolicy {
	case "", "report", "ignore":
	default:
		return errors.Newf("boss.terminal_policy must be report or ignore, got %q", c.Boss.TerminalPolicy)
	}
	if c.Boss.ArchiveAfterHours < 0 {
		return errors.Newf("boss.archive_after_hours must be >= 0, got %d", c.Boss.ArchiveAfterHours)
	}

	return nil
}
