package boss

import (
	"context"

	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/logger"
)

// Complete resolves an active job as completed with response
func (b *Boss) Complete(ctx context.Context, id string, response Payload) error {
	return b.resolveOne(ctx, id, StateCompleted, response)
}

// CompleteMany completes each id independently. Ids that could not be
// resolved are reported together in a *BatchError; the rest are completed.
func (b *Boss) CompleteMany(ctx context.Context, ids []string, response Payload) error {
	return b.resolveMany(ctx, ids, StateCompleted, response)
}

// Fail resolves an active job as failed with response
func (b *Boss) Fail(ctx context.Context, id string, response Payload) error {
	return b.resolveOne(ctx, id, StateFailed, response)
}

// FailMany fails each id independently. Ids that could not be resolved are
// reported together in a *BatchError; the rest are failed.
func (b *Boss) FailMany(ctx context.Context, ids []string, response Payload) error {
	return b.resolveMany(ctx, ids, StateFailed, response)
}

func (b *Boss) resolveOne(ctx context.Context, id string, state State, response Payload) error {
	if id == "" {
		return invalidArgument("job id is required")
	}
	data, err := response.Encode()
	if err != nil {
		return err
	}
	return b.resolve(ctx, id, state, data)
}

func (b *Boss) resolveMany(ctx context.Context, ids []string, state State, response Payload) error {
	if len(ids) == 0 {
		return invalidArgument("at least one job id is required")
	}
	for i, id := range ids {
		if id == "" {
			return invalidArgument("job id at position %d is empty", i)
		}
	}
	data, err := response.Encode()
	if err != nil {
		return err
	}

	var failures []JobError
	for _, id := range ids {
		if err := b.resolve(ctx, id, state, data); err != nil {
			failures = append(failures, JobError{ID: id, Err: err})
		}
	}
	if len(failures) > 0 {
		return &BatchError{Total: len(ids), Failures: failures}
	}
	return nil
}

// resolve writes the terminal state and applies the terminal policy
func (b *Boss) resolve(ctx context.Context, id string, state State, data []byte) error {
	job, err := b.store.Resolve(ctx, id, state, data)
	if err != nil {
		if b.cfg.TerminalPolicy == TerminalIgnore && errors.Is(err, ErrJobAlreadyTerminal) {
			b.logger.Debugw("Ignoring resolution of terminal job",
				logger.FieldJobID, id,
				logger.FieldState, state,
			)
			return nil
		}
		return errors.Wrapf(err, "failed to mark job %s", state)
	}

	b.metrics.RecordResolve(job.Queue, state == StateCompleted)
	log := b.completeLog
	if state == StateFailed {
		log = b.failLog
	}
	log.Debugw("Resolved job",
		logger.FieldQueue, job.Queue,
		logger.FieldJobID, id,
		logger.FieldState, state,
	)
	return nil
}
