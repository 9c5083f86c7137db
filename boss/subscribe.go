package boss

import (
	"context"
	"runtime/debug"

	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/logger"
	"github.com/teranos/boss/sym"
)

// Handler processes one job delivered by Subscribe.
//
// Returning (v, nil) completes the job with ResultFrom(v). Returning an
// error fails it with FailureFrom(err); use Reject to fail with a scalar or
// structured payload. A panic fails the job with the panic value as the
// message. Calling job.Done first decides the outcome and the return value
// is then ignored.
//
// ctx is not cancelled by Unsubscribe; handlers always run to completion.
type Handler func(ctx context.Context, job *Job) (any, error)

// Subscribe polls queue and invokes handler for every claimed job,
// concurrently up to the configured concurrency.
func (b *Boss) Subscribe(queue string, handler Handler, opts ...Option) (*Subscription, error) {
	if queue == "" {
		return nil, invalidArgument("queue name is required")
	}
	if handler == nil {
		return nil, invalidArgument("handler is required")
	}
	o, err := b.options(opts)
	if err != nil {
		return nil, err
	}

	s := b.newSubscription(queue, KindWorker, o)
	if err := s.start(func(ctx context.Context) tickResult {
		return s.workTick(ctx, handler)
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// workTick claims as many jobs as there are free slots and dispatches them
func (s *Subscription) workTick(ctx context.Context, handler Handler) tickResult {
	limit := min(s.opts.batchSize, cap(s.slots)-len(s.slots))
	if limit <= 0 {
		return tickResult{saturated: true}
	}

	if s.opts.limiter != nil {
		if err := s.opts.limiter.Wait(ctx); err != nil {
			return tickResult{err: err}
		}
		granted := 1
		for granted < limit && s.opts.limiter.Allow() {
			granted++
		}
		limit = granted
	}

	jobs, err := s.boss.claim(ctx, s.queue, limit)
	if err != nil {
		return tickResult{err: err}
	}

	// Claimed jobs are active; they run even if ctx is cancelled from here on
	handlerCtx := context.WithoutCancel(ctx)
	for _, job := range jobs {
		s.slots <- struct{}{}
		s.inflight.Add(1)
		go s.handle(handlerCtx, job, handler)
	}
	return tickResult{found: len(jobs)}
}

// handle runs handler for one job and resolves it unless Done already did
func (s *Subscription) handle(ctx context.Context, job *Job, handler Handler) {
	defer func() {
		<-s.slots
		s.inflight.Done()
		s.signal()
	}()

	ctx = logger.WithJobID(ctx, job.ID)
	log := logger.FromContext(ctx, s.logger)
	failLog := logger.WithSymbol(log, sym.Fail)
	res := newResolution(s.boss, job)
	finished := s.boss.metrics.HandlerStarted(s.queue)

	result, panicked, err := callHandler(ctx, job, handler)

	var resolveErr error
	switch {
	case panicked:
		failLog.Errorw("Handler panicked",
			logger.FieldError, err,
			"stack", panicStack(err),
		)
		resolveErr = res.resolve(ctx, StateFailed, FromError(err), "panic")
	case err != nil:
		failLog.Debugw("Handler failed job",
			logger.FieldError, err,
		)
		resolveErr = res.resolve(ctx, StateFailed, FailureFrom(err), "return")
	default:
		resolveErr = res.resolve(ctx, StateCompleted, ResultFrom(result), "return")
	}

	if errors.Is(resolveErr, ErrAlreadyResolved) {
		log.Debugw("Ignoring handler outcome, job already resolved by Done")
	}

	state, source, storeErr := res.outcome()
	if storeErr != nil {
		// Job stays active; reclaiming abandoned jobs is out of scope
		log.Errorw("Failed to resolve job",
			logger.FieldError, storeErr,
			logger.FieldState, state,
			"resolved_by", source,
		)
	}
	finished(string(state))
}

// callHandler invokes handler, turning a panic into an error
func callHandler(ctx context.Context, job *Job, handler Handler) (result any, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			panicked = true
			err = panicError{value: r, stack: debug.Stack()}
		}
	}()
	result, err = handler(ctx, job)
	return result, false, err
}
