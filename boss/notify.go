package boss

import (
	"context"
	"runtime/debug"

	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/logger"
	"github.com/teranos/boss/sym"
)

// Listener receives a terminal job with its state and response.
// Returning an error (or panicking) leaves the job un-notified so a later
// poll delivers it again.
type Listener func(ctx context.Context, job *Job) error

// OnComplete polls queue for completed or failed jobs that have not been
// notified and invokes listener once per job, marking it notified after
// the listener returns nil.
//
// Several registrations on one queue share the work: each terminal job is
// delivered to one of them. A notification whose listener has not returned
// within the notify lease may be delivered again.
func (b *Boss) OnComplete(queue string, listener Listener, opts ...Option) (*Subscription, error) {
	if queue == "" {
		return nil, invalidArgument("queue name is required")
	}
	if listener == nil {
		return nil, invalidArgument("listener is required")
	}
	o, err := b.options(opts)
	if err != nil {
		return nil, err
	}

	s := b.newSubscription(queue, KindListener, o)
	if err := s.start(func(ctx context.Context) tickResult {
		return s.notifyTick(ctx, listener)
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Subscription) notifyTick(ctx context.Context, listener Listener) tickResult {
	jobs, err := s.boss.store.ClaimNotifications(ctx, s.queue, s.opts.batchSize, s.opts.notifyLease)
	if err != nil {
		return tickResult{err: errors.Wrapf(err, "failed to poll completions of %s", s.queue)}
	}

	// Leases are settled even when unsubscribed mid-batch
	storeCtx := context.WithoutCancel(ctx)
	for _, job := range jobs {
		if ctx.Err() != nil {
			s.release(storeCtx, job)
			continue
		}
		s.notify(storeCtx, job, listener)
	}
	return tickResult{found: len(jobs)}
}

func (s *Subscription) notify(ctx context.Context, job *Job, listener Listener) {
	ctx = logger.WithJobID(ctx, job.ID)
	log := logger.WithSymbol(logger.FromContext(ctx, s.logger), sym.Notify).
		With(logger.FieldState, string(job.State))

	if err := callListener(ctx, job, listener); err != nil {
		log.Warnw("Completion listener failed, notification will be retried",
			logger.FieldError, err,
		)
		s.boss.metrics.RecordNotification(s.queue, false)
		s.release(ctx, job)
		return
	}

	if err := s.boss.store.MarkNotified(ctx, job.ID); err != nil {
		log.Errorw("Failed to mark job notified, it may be delivered again",
			logger.FieldError, err,
		)
		return
	}
	s.boss.metrics.RecordNotification(s.queue, true)
	log.Debugw("Delivered completion")
}

func (s *Subscription) release(ctx context.Context, job *Job) {
	if err := s.boss.store.ReleaseNotification(ctx, job.ID); err != nil {
		logger.FromContext(logger.WithJobID(ctx, job.ID), s.logger).Warnw(
			"Failed to release notification, it returns after the lease expires",
			logger.FieldError, err,
		)
	}
}

// callListener invokes listener, turning a panic into an error
func callListener(ctx context.Context, job *Job, listener Listener) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r, stack: debug.Stack()}
		}
	}()
	return listener(ctx, job)
}
