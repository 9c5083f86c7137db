package boss

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	bosstest "github.com/teranos/boss/internal/testing"
)

const (
	testPoll    = 10 * time.Millisecond
	testBackoff = 40 * time.Millisecond
	eventually  = 5 * time.Second
)

// newTestStore returns a store on a fresh migrated SQLite database
func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	return NewSQLStore(bosstest.CreateTestDB(t), SQLite)
}

// newTestBoss returns a Boss with fast polling, stopped at cleanup
func newTestBoss(t *testing.T, cfg Config) (*Boss, *SQLStore) {
	t.Helper()
	store := newTestStore(t)
	if cfg.PollInterval == 0 {
		cfg.PollInterval = testPoll
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = testBackoff
	}
	b := New(store, cfg, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventually)
		defer cancel()
		_ = b.Stop(ctx)
	})
	return b, store
}

// publishN publishes n jobs to queue and returns their ids in order
func publishN(t *testing.T, b *Boss, queue string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range n {
		id, err := b.Publish(context.Background(), queue, map[string]int{"n": i})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

// fetchIDs claims up to n jobs and returns their ids
func fetchIDs(t *testing.T, b *Boss, queue string, n int) []string {
	t.Helper()
	jobs, err := b.Fetch(context.Background(), queue, n)
	require.NoError(t, err)
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}

// waitState polls until the job reaches state
func waitState(t *testing.T, b *Boss, id string, state State) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		j, err := b.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.State == state
	}, eventually, 5*time.Millisecond, "job %s never reached %s", id, state)
	return job
}

// steppingClock returns a clock that advances by step on every call
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}
