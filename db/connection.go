package db

import (
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/sym"
)

// Driver names understood by Connect and Migrate
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLiteBusyTimeoutMS is how long a SQLite connection waits on a locked database
const SQLiteBusyTimeoutMS = 5000

// sqliteParams are applied to every pooled connection through the DSN.
// PRAGMA statements issued on *sql.DB only reach a single connection.
const sqliteParams = "_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"

// Open opens a SQLite database at the specified path with WAL, foreign keys,
// a busy timeout and immediate write transactions.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "path", path, "symbol", sym.DB)
	}

	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// sql.Open is lazy; surface bad paths now
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}
	if journalMode != "wal" && !strings.Contains(path, "mode=memory") {
		db.Close()
		return nil, errors.Newf("failed to enable WAL mode for %s (journal_mode=%s)", path, journalMode)
	}

	if logger != nil {
		logger.Infow("Database opened successfully",
			"path", path,
			"symbol", sym.DB,
			"wal_mode", journalMode == "wal",
		)
	}

	return db, nil
}

// OpenPostgres opens a PostgreSQL database through the pgx stdlib driver.
func OpenPostgres(dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening postgres database", "symbol", sym.DB)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.WithHint(
			errors.Wrap(err, "failed to connect to postgres"),
			"check database.dsn or BOSS_DATABASE_DSN",
		)
	}

	if logger != nil {
		logger.Infow("Postgres database opened successfully", "symbol", sym.DB)
	}
	return db, nil
}

// Connect opens the database selected by driver and applies migrations.
// path is used for SQLite, dsn for PostgreSQL.
func Connect(driver, path, dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "", DriverSQLite:
		db, err = Open(path, logger)
	case DriverPostgres:
		db, err = OpenPostgres(dsn, logger)
	default:
		return nil, errors.Newf("unknown database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, driver, logger); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}
	return db, nil
}

// OpenWithMigrations opens a SQLite database and runs all pending migrations.
func OpenWithMigrations(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	return Connect(DriverSQLite, path, "", logger)
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqliteParams
	}
	return path + "?" + sqliteParams
}
