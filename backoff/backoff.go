// Package backoff provides delay strategies for engine loops that found no
// work or hit a store error. A Strategy builds a fresh cenkalti BackOff per
// loop; Sequence drives it and counts consecutive attempts.
package backoff

import (
	"math"
	"time"

	cenkalti "github.com/cenkalti/backoff/v4"
)

// DefaultJitter is the randomization factor of ExponentialWithJitter when
// none is set: each delay lands within ±50% of the exponential step.
const DefaultJitter = 0.5

// Strategy builds the delay sequence for one loop.
type Strategy interface {
	BackOff() cenkalti.BackOff
}

// Factory adapts any cenkalti BackOff constructor into a Strategy.
type Factory func() cenkalti.BackOff

// BackOff calls f.
func (f Factory) BackOff() cenkalti.BackOff {
	return f()
}

// Constant always waits Interval.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// BackOff returns a cenkalti ConstantBackOff.
func (c *Constant) BackOff() cenkalti.BackOff {
	return cenkalti.NewConstantBackOff(c.Interval)
}

// Exponential doubles the delay each attempt: min(Initial*2^(attempt-1), Max).
// A zero Max means uncapped.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// BackOff returns a deterministic cenkalti ExponentialBackOff.
func (e *Exponential) BackOff() cenkalti.BackOff {
	return exponential(e.Initial, e.Max, 0)
}

// ExponentialWithJitter randomizes each exponential step by Jitter and
// clamps the result to [Initial, Max], so an idle loop never polls faster
// than its base interval.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

// NewExponentialWithJitter creates an exponential backoff with DefaultJitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay, Jitter: DefaultJitter}
}

// BackOff returns a randomized cenkalti ExponentialBackOff with bounds.
func (e *ExponentialWithJitter) BackOff() cenkalti.BackOff {
	jitter := e.Jitter
	if jitter <= 0 || jitter >= 1 {
		jitter = DefaultJitter
	}
	return &bounded{
		BackOff: exponential(e.Initial, e.Max, jitter),
		floor:   e.Initial,
		ceiling: e.Max,
	}
}

func exponential(initial, maxDelay time.Duration, jitter float64) *cenkalti.ExponentialBackOff {
	if maxDelay <= 0 {
		maxDelay = time.Duration(math.MaxInt64)
	}
	b := cenkalti.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = jitter
	b.MaxElapsedTime = 0 // engine loops never give up
	b.Reset()
	return b
}

// bounded clamps every delay of the wrapped BackOff
type bounded struct {
	cenkalti.BackOff
	floor   time.Duration
	ceiling time.Duration
}

func (b *bounded) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == cenkalti.Stop {
		return d
	}
	if d < b.floor {
		d = b.floor
	}
	if b.ceiling > 0 && d > b.ceiling {
		d = b.ceiling
	}
	return d
}

// Default returns the strategy used by engine loops for a poll interval and
// cap. A cap at or below the interval means a fixed interval.
func Default(interval, maxDelay time.Duration) Strategy {
	if maxDelay <= interval {
		return NewConstant(interval)
	}
	return NewExponentialWithJitter(interval, maxDelay)
}

// Sequence counts consecutive attempts against one BackOff.
// It is not safe for concurrent use; each loop owns one.
type Sequence struct {
	b       cenkalti.BackOff
	attempt int
	last    time.Duration
}

// NewSequence starts a sequence at attempt zero.
func NewSequence(s Strategy) *Sequence {
	return &Sequence{b: s.BackOff()}
}

// Next advances the sequence and returns the delay for the new attempt.
// A BackOff that gives up keeps repeating its last delay; loops never stop
// on their own.
func (s *Sequence) Next() time.Duration {
	s.attempt++
	d := s.b.NextBackOff()
	if d == cenkalti.Stop {
		return s.last
	}
	s.last = d
	return d
}

// Reset returns the sequence to attempt zero after a productive tick.
func (s *Sequence) Reset() {
	s.attempt = 0
	s.b.Reset()
}

// Attempt reports how many consecutive attempts have been made.
func (s *Sequence) Attempt() int {
	return s.attempt
}
