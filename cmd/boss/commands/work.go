package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/teranos/boss/boss"
	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/logger"
	"github.com/teranos/boss/metrics"
	"github.com/teranos/boss/sym"
)

// WorkCmd runs a command for every job of a queue
var WorkCmd = &cobra.Command{
	Use:   "work <queue> -- <command> [args...]",
	Short: sym.Boss + " Run a command for every job of a queue",
	Long: sym.Boss + ` work — Run a command for every job of a queue

Subscribes to the queue and runs the command once per claimed job:
  - the job request is written to the command's stdin
  - BOSS_JOB_ID and BOSS_QUEUE are set in its environment
  - exit 0 completes the job; stdout is the response (JSON as-is,
    other text as {"value": "..."}, empty for none)
  - a non-zero exit fails the job with stderr as the message

The command may also be given as one quoted string, which is split like a
shell would. Ctrl+C stops claiming and waits for running commands.

When metrics.addr is configured, Prometheus metrics are served on /metrics.

Examples:
  boss work emails -- ./send-email.sh --smtp localhost
  boss work thumbnails --batch 4 --concurrency 4 -- "convert - -resize 64x64 png:-"
  boss work webhooks --rate 5 --burst 10 -- ./deliver.py`,
	Args: cobra.MinimumNArgs(2),
	RunE: runWork,
}

var (
	workBatch        int
	workConcurrency  int
	workRate         float64
	workBurst        int
	workTimeout      time.Duration
	workDrainTimeout time.Duration
)

func init() {
	WorkCmd.Flags().IntVar(&workBatch, "batch", 0, "Jobs claimed per poll (default from boss.batch_size)")
	WorkCmd.Flags().IntVar(&workConcurrency, "concurrency", 0, "Commands running at once (default: batch size)")
	WorkCmd.Flags().Float64Var(&workRate, "rate", 0, "Maximum jobs started per second (0 = unlimited)")
	WorkCmd.Flags().IntVar(&workBurst, "burst", 1, "Jobs that may start at once under --rate")
	WorkCmd.Flags().DurationVar(&workTimeout, "timeout", 0, "Kill a command running longer than this (0 = no limit)")
	WorkCmd.Flags().DurationVar(&workDrainTimeout, "drain-timeout", 30*time.Second, "How long to wait for running commands on shutdown")
}

// commandArgs returns the command line after "--". A single argument is
// split with shell quoting rules.
func commandArgs(cmd *cobra.Command, args []string) ([]string, error) {
	dash := cmd.ArgsLenAtDash()
	if dash < 1 {
		dash = 1
	}
	argv := args[dash:]
	if len(argv) == 1 {
		split, err := shellquote.Split(argv[0])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse command %q", argv[0])
		}
		argv = split
	}
	if len(argv) == 0 {
		return nil, errors.New("a command to run is required after --")
	}
	return argv, nil
}

func workOptions() []boss.Option {
	var opts []boss.Option
	if workBatch > 0 {
		opts = append(opts, boss.WithBatchSize(workBatch))
	}
	if workConcurrency > 0 {
		opts = append(opts, boss.WithConcurrency(workConcurrency))
	}
	if workRate > 0 {
		opts = append(opts, boss.WithRateLimit(rate.Limit(workRate), workBurst))
	}
	return opts
}

func runWork(cmd *cobra.Command, args []string) error {
	queue := args[0]
	argv, err := commandArgs(cmd, args)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	s, err := openSession(collector)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if addr := s.cfg.Metrics.Addr; addr != "" {
		if err := collector.RegisterDepth(depthFunc(s.boss)); err != nil {
			return errors.Wrap(err, "failed to register queue depth metric")
		}
		metricsLog := logger.ComponentLogger("metrics")
		metricsLog.Infow("Serving metrics", logger.FieldSymbol, sym.Boss, "addr", addr)
		go func() {
			if err := collector.Serve(ctx, addr); err != nil {
				metricsLog.Warnw("Metrics endpoint stopped", logger.FieldError, err)
			}
		}()
	}

	sub, err := s.boss.Subscribe(queue, commandHandler(argv, workTimeout), workOptions()...)
	if err != nil {
		return err
	}

	pterm.Info.Printf("%s Working %s with %s\n", sym.Boss, queue, shellquote.Join(argv...))
	pterm.Info.Println("Press Ctrl+C to stop; running commands are allowed to finish")

	<-ctx.Done()

	pterm.Info.Printf("Draining %d running command(s)...\n", sub.InFlight())
	drainCtx, cancel := context.WithTimeout(context.Background(), workDrainTimeout)
	defer cancel()
	if err := s.boss.Stop(drainCtx); err != nil {
		pterm.Warning.Println("Drain timed out; unfinished jobs stay active")
		return err
	}
	pterm.Success.Println("Stopped cleanly")
	return nil
}

// depthFunc exposes job counts for the boss_queue_jobs gauge
func depthFunc(b *boss.Boss) metrics.DepthFunc {
	return func() (map[string]map[string]int, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		counts, err := b.Counts(ctx, "")
		if err != nil {
			return nil, err
		}
		out := make(map[string]map[string]int, len(counts))
		for queue, states := range counts {
			out[queue] = make(map[string]int, len(states))
			for state, n := range states {
				out[queue][string(state)] = n
			}
		}
		return out, nil
	}
}

// commandError is a failed command run; the exit code is kept in the
// failure response next to the message
type commandError struct {
	message  string
	exitCode int
}

func (e *commandError) Error() string {
	return e.message
}

func (e *commandError) Fields() map[string]any {
	return map[string]any{"exit_code": e.exitCode}
}

// commandHandler runs argv once per job
func commandHandler(argv []string, timeout time.Duration) boss.Handler {
	return func(ctx context.Context, job *boss.Job) (any, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		var stdout, stderr bytes.Buffer
		c := exec.CommandContext(ctx, argv[0], argv[1:]...)
		c.Stdin = bytes.NewReader(job.Request)
		c.Stdout = &stdout
		c.Stderr = &stderr
		c.Env = append(os.Environ(), "BOSS_JOB_ID="+job.ID, "BOSS_QUEUE="+job.Queue)

		if err := c.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			code := -1
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			}
			return nil, &commandError{message: msg, exitCode: code}
		}

		out := bytes.TrimSpace(stdout.Bytes())
		switch {
		case len(out) == 0:
			return nil, nil
		case json.Valid(out):
			return json.RawMessage(out), nil
		default:
			return boss.Scalar(string(out)), nil
		}
	}
}
