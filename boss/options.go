package boss

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/teranos/boss/backoff"
)

// Option configures a Subscribe or OnComplete registration
type Option func(*options)

type options struct {
	batchSize    int
	concurrency  int
	pollInterval time.Duration
	strategy     backoff.Strategy
	limiter      *rate.Limiter
	notifyLease  time.Duration
}

func (b *Boss) options(opts []Option) (options, error) {
	o := options{
		batchSize:    b.cfg.BatchSize,
		concurrency:  b.cfg.Concurrency,
		pollInterval: b.cfg.PollInterval,
		notifyLease:  b.cfg.NotifyLease,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.batchSize < 1 {
		return o, invalidArgument("batch size must be >= 1, got %d", o.batchSize)
	}
	if o.concurrency < 0 {
		return o, invalidArgument("concurrency must be >= 0, got %d", o.concurrency)
	}
	if o.concurrency == 0 {
		o.concurrency = o.batchSize
	}
	if o.pollInterval <= 0 {
		return o, invalidArgument("poll interval must be > 0, got %s", o.pollInterval)
	}
	if o.notifyLease <= 0 {
		return o, invalidArgument("notify lease must be > 0, got %s", o.notifyLease)
	}
	if o.strategy == nil {
		o.strategy = backoff.Default(o.pollInterval, b.cfg.MaxBackoff)
	}
	return o, nil
}

// WithBatchSize sets how many jobs one tick claims
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithConcurrency caps handlers running at once for a subscription.
// A tick claims only as many jobs as there are free slots.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithPollInterval sets the delay between ticks that found work
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithBackoff sets the delay strategy for ticks that found no work or
// hit a store error
func WithBackoff(s backoff.Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithRateLimit gates dispatch to limit jobs per second with the given burst
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(o *options) { o.limiter = rate.NewLimiter(limit, max(burst, 1)) }
}

// WithNotifyLease sets how long an OnComplete listener holds a claimed
// notification before another poll may retry it
func WithNotifyLease(d time.Duration) Option {
	return func(o *options) { o.notifyLease = d }
}
