package boss

import (
	"context"
	"encoding/json"
	"time"
)

// Store is the durable home of every job. Each method is a single atomic
// operation; components never read a row and then write it back.
type Store interface {
	// Insert records a job in the created state. A zero CreatedAt is set by the store.
	Insert(ctx context.Context, job *Job) error

	// Claim moves up to limit created jobs of queue to active, oldest first,
	// and returns them. Concurrent claimers never receive the same job.
	Claim(ctx context.Context, queue string, limit int) ([]*Job, error)

	// Resolve moves an active job to a terminal state with response.
	// It returns ErrJobNotFound, ErrJobNotActive or ErrJobAlreadyTerminal
	// when the job was not active.
	Resolve(ctx context.Context, id string, state State, response json.RawMessage) (*Job, error)

	// Get reads one job, returning ErrJobNotFound if absent
	Get(ctx context.Context, id string) (*Job, error)

	// List reads jobs matching opts in FIFO order
	List(ctx context.Context, opts ListOptions) ([]*Job, error)

	// LatestTerminal returns the most recently resolved job of queue, or nil
	LatestTerminal(ctx context.Context, queue string) (*Job, error)

	// ClaimNotifications leases up to limit terminal, un-notified jobs of
	// queue whose notification is unclaimed or whose lease has expired.
	ClaimNotifications(ctx context.Context, queue string, limit int, lease time.Duration) ([]*Job, error)

	// MarkNotified records that a listener acknowledged the job
	MarkNotified(ctx context.Context, id string) error

	// ReleaseNotification drops the lease so the next poll retries the job
	ReleaseNotification(ctx context.Context, id string) error

	// Archive moves terminal jobs resolved before now-olderThan into the
	// archive table. Jobs awaiting notification move only when includeUnnotified.
	Archive(ctx context.Context, olderThan time.Duration, includeUnnotified bool) (int64, error)

	// Counts returns job counts by queue and state. An empty queue counts all queues.
	Counts(ctx context.Context, queue string) (map[string]map[State]int, error)
}

// DefaultListLimit caps List when no limit is given
const DefaultListLimit = 100

// ListOptions filters List
type ListOptions struct {
	Queue  string  // empty = all queues
	States []State // empty = all states
	Limit  int     // <= 0 = DefaultListLimit
}
