package boss

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported stores
type Dialect struct {
	Name string

	// greatest is the two-argument maximum function
	greatest string
	// lockClause is appended to claim subqueries
	lockClause string
	// numbered placeholders ($1, $2, ...) instead of ?
	numbered bool
}

var (
	// SQLite serializes writers, so claim subqueries need no row locks
	SQLite = Dialect{Name: "sqlite", greatest: "MAX"}

	// Postgres skips rows another claimer has locked instead of waiting on them
	Postgres = Dialect{Name: "postgres", greatest: "GREATEST", lockClause: " FOR UPDATE SKIP LOCKED", numbered: true}
)

// DialectFor returns the dialect for a db driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	default:
		return Dialect{}, invalidArgument("unknown dialect %q", driver)
	}
}

// rebind rewrites ? placeholders for dialects with numbered parameters.
// Queries in this package never contain ? inside string literals.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const jobColumns = `id, queue, state, request, response, created_at, started_at, completed_at, notified_at`

const terminalStates = `('completed', 'failed')`

func (d Dialect) insertQuery() string {
	return d.rebind(`INSERT INTO boss_jobs (id, queue, state, request, created_at) VALUES (?, ?, 'created', ?, ?)`)
}

// claimQuery args: now, queue, limit
func (d Dialect) claimQuery() string {
	return d.rebind(`UPDATE boss_jobs
		SET state = 'active', started_at = ` + d.greatest + `(?, created_at)
		WHERE state = 'created' AND id IN (
			SELECT id FROM boss_jobs
			WHERE queue = ? AND state = 'created'
			ORDER BY created_at, id
			LIMIT ?` + d.lockClause + `
		)
		RETURNING ` + jobColumns)
}

// resolveQuery args: state, response, now, id
func (d Dialect) resolveQuery() string {
	return d.rebind(`UPDATE boss_jobs
		SET state = ?, response = ?, completed_at = ` + d.greatest + `(?, started_at)
		WHERE id = ? AND state = 'active'
		RETURNING ` + jobColumns)
}

func (d Dialect) getQuery() string {
	return d.rebind(`SELECT ` + jobColumns + ` FROM boss_jobs WHERE id = ?`)
}

func (d Dialect) latestTerminalQuery() string {
	return d.rebind(`SELECT ` + jobColumns + ` FROM boss_jobs
		WHERE queue = ? AND state IN ` + terminalStates + ` AND completed_at IS NOT NULL
		ORDER BY completed_at DESC, id DESC
		LIMIT 1`)
}

// listQuery builds a filtered FIFO read; args follow the filter order
func (d Dialect) listQuery(opts ListOptions) (string, []any) {
	var (
		where []string
		args  []any
	)
	if opts.Queue != "" {
		where = append(where, "queue = ?")
		args = append(args, opts.Queue)
	}
	if len(opts.States) > 0 {
		marks := make([]string, len(opts.States))
		for i, s := range opts.States {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "state IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT ` + jobColumns + ` FROM boss_jobs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id LIMIT ?`

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit)
	return d.rebind(query), args
}

// claimNotificationsQuery args: now, queue, expiredBefore, limit, expiredBefore
func (d Dialect) claimNotificationsQuery() string {
	return d.rebind(`UPDATE boss_jobs
		SET notify_claimed_at = ?
		WHERE id IN (
			SELECT id FROM boss_jobs
			WHERE queue = ? AND state IN ` + terminalStates + ` AND notified_at IS NULL
			  AND (notify_claimed_at IS NULL OR notify_claimed_at < ?)
			ORDER BY completed_at, id
			LIMIT ?` + d.lockClause + `
		)
		AND notified_at IS NULL
		AND (notify_claimed_at IS NULL OR notify_claimed_at < ?)
		RETURNING ` + jobColumns)
}

// markNotifiedQuery args: now, id
func (d Dialect) markNotifiedQuery() string {
	return d.rebind(`UPDATE boss_jobs
		SET notified_at = ` + d.greatest + `(?, completed_at)
		WHERE id = ? AND state IN ` + terminalStates + ` AND notified_at IS NULL`)
}

func (d Dialect) releaseNotificationQuery() string {
	return d.rebind(`UPDATE boss_jobs SET notify_claimed_at = NULL WHERE id = ? AND notified_at IS NULL`)
}

const archiveColumns = `id, queue, state, request, response, created_at, started_at, completed_at, notify_claimed_at, notified_at`

// archiveInsertQuery args: archivedAt, cutoff
func (d Dialect) archiveInsertQuery(includeUnnotified bool) string {
	query := `INSERT INTO boss_jobs_archive (` + archiveColumns + `, archived_at)
		SELECT ` + archiveColumns + `, ? FROM boss_jobs
		WHERE state IN ` + terminalStates + ` AND completed_at < ?`
	if !includeUnnotified {
		query += ` AND notified_at IS NOT NULL`
	}
	return d.rebind(query)
}

// archiveDeleteQuery args: archivedAt
func (d Dialect) archiveDeleteQuery() string {
	return d.rebind(`DELETE FROM boss_jobs
		WHERE id IN (SELECT id FROM boss_jobs_archive WHERE archived_at = ?)`)
}

func (d Dialect) countsQuery(queue string) (string, []any) {
	query := `SELECT queue, state, COUNT(*) FROM boss_jobs`
	var args []any
	if queue != "" {
		query += ` WHERE queue = ?`
		args = append(args, queue)
	}
	query += ` GROUP BY queue, state`
	return d.rebind(query), args
}
