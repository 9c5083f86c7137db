package boss

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/boss/errors"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one row selected with jobColumns.
// Timestamps are stored as unix nanoseconds.
func scanJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		state       string
		request     string
		response    sql.NullString
		createdAt   int64
		startedAt   sql.NullInt64
		completedAt sql.NullInt64
		notifiedAt  sql.NullInt64
	)

	err := row.Scan(
		&job.ID,
		&job.Queue,
		&state,
		&request,
		&response,
		&createdAt,
		&startedAt,
		&completedAt,
		&notifiedAt,
	)
	if err != nil {
		return nil, err
	}

	job.State = State(state)
	job.Request = json.RawMessage(request)
	if response.Valid {
		job.Response = json.RawMessage(response.String)
	}
	job.CreatedAt = fromNanos(createdAt)
	job.StartedAt = nullTime(startedAt)
	job.CompletedAt = nullTime(completedAt)
	job.NotifiedAt = nullTime(notifiedAt)
	return &job, nil
}

// scanJobs drains rows, closing them
func scanJobs(rows *sql.Rows, what string) ([]*Job, error) {
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan %s", what)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", what)
	}
	return jobs, nil
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// nullResponse maps a nil response to SQL NULL
func nullResponse(response json.RawMessage) sql.NullString {
	if response == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(response), Valid: true}
}
