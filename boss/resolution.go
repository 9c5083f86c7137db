package boss

import (
	"context"
	"sync"

	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/logger"
)

// resolution is the single-assignment outcome slot of a dispatched job.
// The first of Job.Done, the handler's return or a handler panic claims
// it; later attempts get ErrAlreadyResolved and touch nothing.
type resolution struct {
	boss  *Boss
	jobID string

	settled chan struct{}

	mu     sync.Mutex
	source string // who claimed the slot; empty while unclaimed
	state  State
	err    error
}

func newResolution(b *Boss, job *Job) *resolution {
	r := &resolution{boss: b, jobID: job.ID, settled: make(chan struct{})}
	job.resolution = r
	return r
}

// resolve claims the slot and writes the outcome to the store
func (r *resolution) resolve(ctx context.Context, state State, response Payload, source string) error {
	r.mu.Lock()
	if r.source != "" {
		winner := r.source
		r.mu.Unlock()
		return errors.WithDetailf(ErrAlreadyResolved, "Job ID: %s (resolved by %s)", r.jobID, winner)
	}
	r.source = source
	r.mu.Unlock()

	err := r.boss.resolveOne(ctx, r.jobID, state, response)
	if err != nil {
		// Unencodable payloads still have to end the job
		if errors.Is(err, ErrInvalidArgument) {
			r.boss.logger.Warnw("Response payload rejected, failing job with the encoding error",
				logger.FieldJobID, r.jobID,
				logger.FieldError, err,
			)
			state = StateFailed
			err = r.boss.resolveOne(ctx, r.jobID, StateFailed, FromError(err))
		}
	}

	r.mu.Lock()
	r.state = state
	r.err = err
	r.mu.Unlock()
	close(r.settled)
	return err
}

// outcome returns the state written and the error of the winning attempt.
// It blocks until the winner's store write has returned.
func (r *resolution) outcome() (State, string, error) {
	<-r.settled
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.source, r.err
}
