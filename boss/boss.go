package boss

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/logger"
	"github.com/teranos/boss/metrics"
	"github.com/teranos/boss/sym"
)

// TerminalPolicy decides how resolving an already terminal job is reported
type TerminalPolicy string

const (
	// TerminalReport returns ErrJobAlreadyTerminal
	TerminalReport TerminalPolicy = "report"
	// TerminalIgnore treats re-resolution of a terminal job as success
	TerminalIgnore TerminalPolicy = "ignore"
)

// ParseTerminalPolicy accepts "report", "ignore" or "" (report)
func ParseTerminalPolicy(s string) (TerminalPolicy, error) {
	switch TerminalPolicy(s) {
	case "", TerminalReport:
		return TerminalReport, nil
	case TerminalIgnore:
		return TerminalIgnore, nil
	default:
		return "", invalidArgument("unknown terminal policy %q", s)
	}
}

// Config holds engine defaults. Subscribe and OnComplete options override
// them per registration.
type Config struct {
	PollInterval      time.Duration // Delay between ticks that found work
	MaxBackoff        time.Duration // Cap for idle/error backoff; <= PollInterval means fixed interval
	BatchSize         int           // Jobs claimed per tick
	Concurrency       int           // In-flight handlers per subscription (0 = BatchSize)
	NotifyLease       time.Duration // How long a claimed notification is held before retry
	TerminalPolicy    TerminalPolicy
	ArchiveUnnotified bool               // Archive jobs no listener has acknowledged
	Metrics           *metrics.Collector // Optional
}

// DefaultConfig returns the defaults used for zero Config fields
func DefaultConfig() Config {
	return Config{
		PollInterval:   time.Second,
		MaxBackoff:     10 * time.Second,
		BatchSize:      1,
		NotifyLease:    30 * time.Second,
		TerminalPolicy: TerminalReport,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.MaxBackoff < 0 {
		c.MaxBackoff = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency < 0 {
		c.Concurrency = 0
	}
	if c.NotifyLease <= 0 {
		c.NotifyLease = d.NotifyLease
	}
	if c.TerminalPolicy == "" {
		c.TerminalPolicy = d.TerminalPolicy
	}
	return c
}

// Boss publishes, claims and resolves jobs and runs subscription loops
type Boss struct {
	store   Store
	cfg     Config
	logger  *zap.SugaredLogger
	metrics *metrics.Collector

	// per-transition loggers
	publishLog  *zap.SugaredLogger
	claimLog    *zap.SugaredLogger
	completeLog *zap.SugaredLogger
	failLog     *zap.SugaredLogger
	archiveLog  *zap.SugaredLogger

	mu      sync.Mutex
	subs    map[string]*Subscription
	stopped bool
}

// New creates a Boss over store. A nil logger uses the global logger.
func New(store Store, cfg Config, log *zap.SugaredLogger) *Boss {
	if log == nil {
		log = logger.Logger
	}
	cfg = cfg.withDefaults()
	log = log.Named("boss")
	return &Boss{
		store:       store,
		cfg:         cfg,
		logger:      log,
		metrics:     cfg.Metrics,
		publishLog:  logger.WithSymbol(log, sym.Publish),
		claimLog:    logger.WithSymbol(log, sym.Claim),
		completeLog: logger.WithSymbol(log, sym.Complete),
		failLog:     logger.WithSymbol(log, sym.Fail),
		archiveLog:  logger.WithSymbol(log, sym.Archive),
		subs:        make(map[string]*Subscription),
	}
}

// Store returns the underlying store
func (b *Boss) Store() Store {
	return b.store
}

// Config returns the effective configuration
func (b *Boss) Config() Config {
	return b.cfg
}

// Publish records a new job in queue and returns its id once the insert
// has committed. A nil request is stored as {}; json.RawMessage and []byte
// are stored as given; anything else is marshalled.
func (b *Boss) Publish(ctx context.Context, queue string, request any) (string, error) {
	if queue == "" {
		return "", invalidArgument("queue name is required")
	}

	data, err := encodeRequest(request)
	if err != nil {
		return "", err
	}

	job := &Job{
		ID:      uuid.NewString(),
		Queue:   queue,
		State:   StateCreated,
		Request: data,
	}
	if err := b.store.Insert(ctx, job); err != nil {
		return "", errors.Wrapf(err, "failed to publish to %s", queue)
	}

	b.metrics.RecordPublish(queue)
	b.publishLog.Debugw("Published job",
		logger.FieldQueue, queue,
		logger.FieldJobID, job.ID,
	)
	return job.ID, nil
}

func encodeRequest(request any) (json.RawMessage, error) {
	if request == nil {
		return json.RawMessage(`{}`), nil
	}
	data, err := encodeStructured(request)
	if err != nil {
		return nil, errors.Wrap(err, "invalid request payload")
	}
	if string(data) == "null" {
		return json.RawMessage(`{}`), nil
	}
	return data, nil
}

// Fetch claims up to batchSize created jobs of queue, oldest first, and
// returns them in the active state. No available work is an empty result.
func (b *Boss) Fetch(ctx context.Context, queue string, batchSize int) ([]*Job, error) {
	if queue == "" {
		return nil, invalidArgument("queue name is required")
	}
	if batchSize < 1 {
		return nil, invalidArgument("batch size must be >= 1, got %d", batchSize)
	}
	return b.claim(ctx, queue, batchSize)
}

// FetchOne claims the oldest created job of queue, or returns nil
func (b *Boss) FetchOne(ctx context.Context, queue string) (*Job, error) {
	jobs, err := b.Fetch(ctx, queue, 1)
	if err != nil || len(jobs) == 0 {
		return nil, err
	}
	return jobs[0], nil
}

func (b *Boss) claim(ctx context.Context, queue string, limit int) ([]*Job, error) {
	jobs, err := b.store.Claim(ctx, queue, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch from %s", queue)
	}
	if len(jobs) > 0 {
		b.metrics.RecordClaim(queue, len(jobs))
		b.claimLog.Debugw("Claimed jobs",
			logger.FieldQueue, queue,
			logger.FieldCount, len(jobs),
		)
	}
	return jobs, nil
}

// FetchCompleted returns the most recently resolved job of queue, or nil.
// Only jobs with a completion time are considered.
//
// It reads without consuming: calling it twice with no resolution in
// between returns the same job. To receive every outcome once, register
// a listener with OnComplete.
func (b *Boss) FetchCompleted(ctx context.Context, queue string) (*Job, error) {
	if queue == "" {
		return nil, invalidArgument("queue name is required")
	}
	job, err := b.store.LatestTerminal(ctx, queue)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch completed job from %s", queue)
	}
	return job, nil
}

// GetJob reads a job by id
func (b *Boss) GetJob(ctx context.Context, id string) (*Job, error) {
	if id == "" {
		return nil, invalidArgument("job id is required")
	}
	return b.store.Get(ctx, id)
}

// List reads jobs matching opts
func (b *Boss) List(ctx context.Context, opts ListOptions) ([]*Job, error) {
	for _, s := range opts.States {
		if !IsValidState(string(s)) {
			return nil, invalidArgument("unknown state %q", s)
		}
	}
	return b.store.List(ctx, opts)
}

// Counts returns job counts by queue and state
func (b *Boss) Counts(ctx context.Context, queue string) (map[string]map[State]int, error) {
	return b.store.Counts(ctx, queue)
}

// Archive moves terminal jobs resolved more than olderThan ago out of the
// active table. Jobs still awaiting a completion listener stay unless
// Config.ArchiveUnnotified is set.
func (b *Boss) Archive(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan < 0 {
		return 0, invalidArgument("archive age must be >= 0, got %s", olderThan)
	}
	n, err := b.store.Archive(ctx, olderThan, b.cfg.ArchiveUnnotified)
	if err != nil {
		return 0, errors.Wrap(err, "failed to archive jobs")
	}
	b.metrics.RecordArchive(n)
	if n > 0 {
		b.archiveLog.Infow("Archived jobs",
			logger.FieldCount, n,
			"older_than", olderThan,
		)
	}
	return n, nil
}

// Stop unsubscribes every subscription and listener and waits for their
// in-flight handlers. Later Subscribe/OnComplete calls return ErrStopped.
func (b *Boss) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	for _, s := range subs {
		if err := s.Wait(ctx); err != nil {
			return errors.Wrap(err, "stop interrupted while handlers were running")
		}
		b.unregister(s)
	}
	return nil
}

// Subscriptions returns the registered subscriptions and listeners,
// including unsubscribed ones whose handlers are still running
func (b *Boss) Subscriptions() []*Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	return subs
}

func (b *Boss) register(s *Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return ErrStopped
	}
	b.subs[s.id] = s
	return nil
}

func (b *Boss) unregister(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s.id)
}
