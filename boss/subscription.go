package boss

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/boss/backoff"
	"github.com/teranos/boss/db"
	"github.com/teranos/boss/logger"
	"github.com/teranos/boss/sym"
)

// Registration kinds
const (
	KindWorker   = "worker"   // Subscribe
	KindListener = "listener" // OnComplete
)

// Subscription is the handle of a Subscribe or OnComplete registration.
// One goroutine polls the queue until Unsubscribe or Boss.Stop.
type Subscription struct {
	id     string
	queue  string
	kind   string
	boss   *Boss
	opts   options
	logger *zap.SugaredLogger

	cancel   context.CancelFunc
	loopDone chan struct{}
	inflight sync.WaitGroup
	slots    chan struct{} // one token per running handler
	wake     chan struct{} // a handler finished; claim again without waiting
	stopOnce sync.Once
}

// tickResult is what one poll of the queue produced
type tickResult struct {
	found     int
	saturated bool // no free handler slot, nothing was claimed
	err       error
}

type tickFunc func(ctx context.Context) tickResult

func (b *Boss) newSubscription(queue, kind string, o options) *Subscription {
	id := uuid.NewString()
	s := &Subscription{
		id:       id,
		queue:    queue,
		kind:     kind,
		boss:     b,
		opts:     o,
		loopDone: make(chan struct{}),
		wake:     make(chan struct{}, 1),
		logger:   b.logger.Named(kind).With(logger.FieldSubscriptionID, id),
	}
	if kind == KindWorker {
		s.slots = make(chan struct{}, o.concurrency)
	}
	return s
}

// start registers the subscription and launches its polling loop
func (s *Subscription) start(tick tickFunc) error {
	if err := s.boss.register(s); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(logger.WithQueue(context.Background(), s.queue))
	s.cancel = cancel
	go s.loop(ctx, tick)
	return nil
}

// ID returns the subscription's unique id
func (s *Subscription) ID() string {
	return s.id
}

// Queue returns the queue the subscription polls
func (s *Subscription) Queue() string {
	return s.queue
}

// Kind returns KindWorker or KindListener
func (s *Subscription) Kind() string {
	return s.kind
}

// InFlight reports how many handlers are running
func (s *Subscription) InFlight() int {
	return len(s.slots)
}

// Unsubscribe stops future ticks. Handlers already running keep going and
// still resolve their jobs; use Wait to wait for them. The subscription
// stays registered until it has drained, so Boss.Stop still waits for it.
func (s *Subscription) Unsubscribe() {
	s.stopOnce.Do(func() {
		s.cancel()
		go func() {
			_ = s.Wait(context.Background())
			s.boss.unregister(s)
		}()
	})
}

// Wait blocks until the polling loop has exited and every in-flight
// handler has returned, or ctx is done.
func (s *Subscription) Wait(ctx context.Context) error {
	select {
	case <-s.loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signal wakes the loop after a handler frees its slot
func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// loop runs idle -> polling -> dispatching -> idle until ctx is cancelled.
// Idle queues and store errors advance the backoff sequence; a tick that
// found work resets it.
func (s *Subscription) loop(ctx context.Context, tick tickFunc) {
	defer close(s.loopDone)

	log := logger.FromContext(ctx, s.logger)
	log.Infow("Subscription started",
		logger.FieldSymbol, sym.BossOpen,
		logger.FieldBatchSize, s.opts.batchSize,
		logger.FieldInterval, s.opts.pollInterval,
	)

	seq := backoff.NewSequence(s.opts.strategy)
	timer := time.NewTimer(0)
	defer timer.Stop()
	errorCount := 0

	for {
		select {
		case <-ctx.Done():
			log.Infow("Subscription stopped",
				logger.FieldSymbol, sym.BossClose,
				logger.FieldInFlight, s.InFlight(),
			)
			return
		case <-timer.C:
		case <-s.wake:
			timer.Stop()
		}

		r := tick(ctx)
		if ctx.Err() != nil {
			continue
		}

		var delay time.Duration
		switch {
		case r.err != nil && db.IsDatabaseClosed(r.err):
			// Connection closed under a running loop, usually at shutdown
			delay = seq.Next()
			log.Debugw("Database closed, skipping poll",
				logger.FieldSymbol, sym.DB,
				logger.FieldBackoff, delay,
			)
			timer.Reset(delay)
			continue
		case r.err != nil:
			errorCount++
			s.boss.metrics.RecordStoreError(s.kind)
			delay = seq.Next()
			log.Warnw("Poll failed, backing off",
				logger.FieldSymbol, sym.Boss,
				logger.FieldError, r.err,
				logger.FieldBackoff, delay,
				"consecutive_errors", errorCount,
			)
			timer.Reset(delay)
			continue
		case r.saturated:
			delay = s.opts.pollInterval
		case r.found == 0:
			delay = seq.Next()
		default:
			seq.Reset()
			delay = s.opts.pollInterval
		}

		if errorCount > 0 {
			log.Infow("Poll recovered from errors",
				logger.FieldSymbol, sym.Boss,
				"previous_error_count", errorCount,
			)
			errorCount = 0
			seq.Reset()
		}
		timer.Reset(delay)
	}
}
