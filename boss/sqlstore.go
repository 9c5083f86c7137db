package boss

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"slices"
	"time"

	"github.com/teranos/boss/errors"
)

// SQLStore implements Store over database/sql.
// Every mutation is one conditional statement inside its own transaction.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// NewSQLStore creates a store on a migrated database
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

// WithClock replaces the store's clock; used by tests that need fixed time
func (s *SQLStore) WithClock(now func() time.Time) *SQLStore {
	s.now = now
	return s
}

// Dialect returns the store's SQL dialect
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// withTx runs fn in a transaction, committing when it returns nil
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Insert records a job in the created state
func (s *SQLStore) Insert(ctx context.Context, job *Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now().UTC()
	}
	job.State = StateCreated

	_, err := s.db.ExecContext(ctx, s.dialect.insertQuery(),
		job.ID,
		job.Queue,
		string(job.Request),
		toNanos(job.CreatedAt),
	)
	if err != nil {
		return errors.WithDetail(errors.Wrap(err, "failed to insert job"), "Job ID: "+job.ID)
	}
	return nil
}

// Claim moves up to limit created jobs to active, FIFO by created_at then id
func (s *SQLStore) Claim(ctx context.Context, queue string, limit int) ([]*Job, error) {
	var jobs []*Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.dialect.claimQuery(), toNanos(s.now()), queue, limit)
		if err != nil {
			return errors.Wrapf(err, "failed to claim jobs from %s", queue)
		}
		jobs, err = scanJobs(rows, "claimed jobs")
		return err
	})
	if err != nil {
		return nil, err
	}

	// RETURNING order is unspecified
	slices.SortFunc(jobs, fifo)
	return jobs, nil
}

func fifo(a, b *Job) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Resolve moves an active job to state with response
func (s *SQLStore) Resolve(ctx context.Context, id string, state State, response json.RawMessage) (*Job, error) {
	if !state.IsTerminal() {
		return nil, invalidArgument("cannot resolve job to %q", state)
	}

	var job *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.dialect.resolveQuery(),
			string(state),
			nullResponse(response),
			toNanos(s.now()),
			id,
		)
		resolved, err := scanJob(row)
		if err == nil {
			job = resolved
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(err, "failed to resolve job")
		}

		// Nothing updated: say why
		current, err := scanJob(tx.QueryRowContext(ctx, s.dialect.getQuery(), id))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return ErrJobNotFound
		case err != nil:
			return errors.Wrap(err, "failed to read job after conditional update")
		case current.State.IsTerminal():
			return errors.Wrapf(ErrJobAlreadyTerminal, "job is %s", current.State)
		default:
			return errors.Wrapf(ErrJobNotActive, "job is %s", current.State)
		}
	})
	if err != nil {
		return nil, errors.WithDetail(err, "Job ID: "+id)
	}
	return job, nil
}

// Get reads one job
func (s *SQLStore) Get(ctx context.Context, id string) (*Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, s.dialect.getQuery(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithDetail(ErrJobNotFound, "Job ID: "+id)
	}
	if err != nil {
		return nil, errors.WithDetail(errors.Wrap(err, "failed to get job"), "Job ID: "+id)
	}
	return job, nil
}

// List reads jobs matching opts
func (s *SQLStore) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	query, args := s.dialect.listQuery(opts)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	return scanJobs(rows, "jobs")
}

// LatestTerminal returns the most recently resolved job of queue, or nil
func (s *SQLStore) LatestTerminal(ctx context.Context, queue string) (*Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, s.dialect.latestTerminalQuery(), queue))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read latest terminal job of %s", queue)
	}
	return job, nil
}

// ClaimNotifications leases terminal, un-notified jobs for a listener
func (s *SQLStore) ClaimNotifications(ctx context.Context, queue string, limit int, lease time.Duration) ([]*Job, error) {
	now := s.now()
	expiredBefore := toNanos(now.Add(-lease))

	var jobs []*Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.dialect.claimNotificationsQuery(),
			toNanos(now), queue, expiredBefore, limit, expiredBefore)
		if err != nil {
			return errors.Wrapf(err, "failed to claim notifications from %s", queue)
		}
		jobs, err = scanJobs(rows, "notifications")
		return err
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(jobs, func(a, b *Job) int {
		if c := a.CompletedAt.Compare(*b.CompletedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs, nil
}

// MarkNotified records listener acknowledgement. Marking an already
// notified job is a no-op.
func (s *SQLStore) MarkNotified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.markNotifiedQuery(), toNanos(s.now()), id)
	if err != nil {
		return errors.WithDetail(errors.Wrap(err, "failed to mark job notified"), "Job ID: "+id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseNotification drops a notification lease
func (s *SQLStore) ReleaseNotification(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.releaseNotificationQuery(), id); err != nil {
		return errors.WithDetail(errors.Wrap(err, "failed to release notification"), "Job ID: "+id)
	}
	return nil
}

// Archive moves old terminal jobs into boss_jobs_archive in one transaction
func (s *SQLStore) Archive(ctx context.Context, olderThan time.Duration, includeUnnotified bool) (int64, error) {
	now := s.now()
	archivedAt := toNanos(now)
	cutoff := toNanos(now.Add(-olderThan))

	var moved int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.archiveInsertQuery(includeUnnotified), archivedAt, cutoff)
		if err != nil {
			return errors.Wrap(err, "failed to copy jobs into archive")
		}
		moved, err = res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to count archived jobs")
		}
		if moved == 0 {
			return nil
		}

		res, err = tx.ExecContext(ctx, s.dialect.archiveDeleteQuery(), archivedAt)
		if err != nil {
			return errors.Wrap(err, "failed to remove archived jobs")
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to count removed jobs")
		}
		if deleted != moved {
			return errors.AssertionFailedf("archived %d jobs but removed %d", moved, deleted)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// Counts returns job counts by queue and state
func (s *SQLStore) Counts(ctx context.Context, queue string) (map[string]map[State]int, error) {
	query, args := s.dialect.countsQuery(queue)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()

	counts := map[string]map[State]int{}
	for rows.Next() {
		var (
			q     string
			state string
			n     int
		)
		if err := rows.Scan(&q, &state, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan job counts")
		}
		if counts[q] == nil {
			counts[q] = map[State]int{}
		}
		counts[q][State(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating job counts")
	}
	return counts, nil
}
