package boss

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/boss/errors"
)

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"", "sqlite", "sqlite3"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.Name)
	}
	for _, name := range []string{"postgres", "pgx"} {
		d, err := DialectFor(name)
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name)
	}
	_, err := DialectFor("mysql")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y IN (?, ?) LIMIT ?"
	assert.Equal(t, q, SQLite.rebind(q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3) LIMIT $4", Postgres.rebind(q))
}

func TestClaimQueryShape(t *testing.T) {
	sqlite := SQLite.claimQuery()
	assert.Contains(t, sqlite, "MAX(?, created_at)")
	assert.NotContains(t, sqlite, "SKIP LOCKED")

	pg := Postgres.claimQuery()
	assert.Contains(t, pg, "GREATEST($1, created_at)")
	assert.Contains(t, pg, "queue = $2")
	assert.Contains(t, pg, "LIMIT $3 FOR UPDATE SKIP LOCKED")
	assert.Contains(t, pg, "ORDER BY created_at, id")
}

func TestListQuery(t *testing.T) {
	q, args := Postgres.listQuery(ListOptions{Queue: "q", States: []State{StateCreated, StateFailed}})
	assert.Contains(t, q, "WHERE queue = $1 AND state IN ($2, $3)")
	assert.Contains(t, q, "LIMIT $4")
	assert.Equal(t, []any{"q", "created", "failed", DefaultListLimit}, args)
}

var jobRowColumns = []string{"id", "queue", "state", "request", "response", "created_at", "started_at", "completed_at", "notified_at"}

func newMockStore(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := NewSQLStore(db, Postgres).WithClock(func() time.Time { return time.Unix(100, 0) })
	return store, mock
}

func TestPostgresClaim(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs(int64(100_000_000_000), "emails", 2).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow("b", "emails", "active", `{}`, nil, int64(20), int64(100), nil, nil).
			AddRow("a", "emails", "active", `{"n": 1}`, nil, int64(10), int64(100), nil, nil))
	mock.ExpectCommit()

	jobs, err := store.Claim(context.Background(), "emails", 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID, "RETURNING order is re-sorted FIFO")
	assert.Equal(t, json.RawMessage(`{"n": 1}`), jobs[0].Request)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimErrorRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE boss_jobs").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := store.Claim(context.Background(), "emails", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.Contains(t, err.Error(), "failed to claim jobs from emails")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResolveClassifiesMiss(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $4 AND state = 'active'")).
		WithArgs("completed", sqlmock.AnyArg(), int64(100_000_000_000), "j").
		WillReturnRows(sqlmock.NewRows(jobRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM boss_jobs WHERE id = $1")).
		WithArgs("j").
		WillReturnRows(sqlmock.NewRows(jobRowColumns).
			AddRow("j", "emails", "completed", `{}`, `{"value":1}`, int64(10), int64(20), int64(30), nil))
	mock.ExpectRollback()

	_, err := store.Resolve(context.Background(), "j", StateCompleted, json.RawMessage(`{"value":2}`))
	assert.True(t, errors.Is(err, ErrJobAlreadyTerminal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO boss_jobs_archive")).
		WithArgs(int64(100_000_000_000), int64(100_000_000_000-int64(time.Hour))).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM boss_jobs")).
		WithArgs(int64(100_000_000_000)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := store.Archive(context.Background(), time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveMismatchRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO boss_jobs_archive").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM boss_jobs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	_, err := store.Archive(context.Background(), time.Hour, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archived 2 jobs but removed 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
