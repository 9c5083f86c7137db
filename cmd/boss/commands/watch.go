package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/boss/boss"
	"github.com/teranos/boss/internal/webhook"
	"github.com/teranos/boss/logger"
	"github.com/teranos/boss/sym"
)

// WatchCmd prints completion notifications
var WatchCmd = &cobra.Command{
	Use:   "watch <queue>",
	Short: sym.Notify + " Print completion notifications of a queue",
	Long: sym.Notify + ` watch — Print completion notifications of a queue

Registers a completion listener and prints every job of the queue that
completed or failed and has not been delivered to a listener yet. Each
printed job is marked notified, so two watchers on one queue share the
notifications rather than both printing them.

With --json-lines every notification is one JSON line on stdout.

With --webhook every notification is also POSTed as JSON to the URL and is
only marked notified once the endpoint answers 2xx; failed deliveries are
retried on later polls. Loopback and private addresses are refused unless
--allow-private is given.

Examples:
  boss watch emails
  boss watch emails --json-lines | jq .data.response
  boss watch emails --webhook https://hooks.example.com/boss -H "Authorization=Bearer $TOKEN"`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchJSON         bool
	watchWebhook      string
	watchAllowPrivate bool
	watchHeaders      map[string]string
	watchTimeout      time.Duration
)

func init() {
	WatchCmd.Flags().BoolVar(&watchJSON, "json-lines", false, "Print each job as a JSON line")
	WatchCmd.Flags().StringVar(&watchWebhook, "webhook", "", "POST every notification to this URL")
	WatchCmd.Flags().BoolVar(&watchAllowPrivate, "allow-private", false, "Allow webhook delivery to loopback and private addresses")
	WatchCmd.Flags().StringToStringVarP(&watchHeaders, "header", "H", nil, "Extra webhook header as key=value (repeatable)")
	WatchCmd.Flags().DurationVar(&watchTimeout, "webhook-timeout", 10*time.Second, "Timeout for one webhook delivery")
}

// forwardThen delivers through forward before handing the job to next
func forwardThen(forward, next boss.Listener) boss.Listener {
	return func(ctx context.Context, job *boss.Job) error {
		if err := forward(ctx, job); err != nil {
			return err
		}
		return next(ctx, job)
	}
}

// notificationPrinter writes one line per delivered job
type notificationPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	jsonLine bool
}

func (p *notificationPrinter) listen(_ context.Context, job *boss.Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.jsonLine {
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.w, string(data))
		return err
	}

	symbol, state := sym.Complete, pterm.Green(string(job.State))
	if job.State == boss.StateFailed {
		symbol, state = sym.Fail, pterm.Red(string(job.State))
	}
	response := "-"
	if len(job.Response) > 0 {
		response = truncate(string(job.Response), 120)
	}
	_, err := fmt.Fprintf(p.w, "%s %s %s %s %s\n",
		symbol, formatTime(job.CompletedAt), job.ID, state, pterm.Gray(response))
	return err
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := &notificationPrinter{w: cmd.OutOrStdout(), jsonLine: watchJSON}
	listener := boss.Listener(printer.listen)
	if watchWebhook != "" {
		forwarder, err := webhook.New(watchWebhook, webhook.Options{
			Timeout:      watchTimeout,
			AllowPrivate: watchAllowPrivate,
			Headers:      watchHeaders,
		}, logger.Logger)
		if err != nil {
			return err
		}
		listener = forwardThen(forwarder.Listener(), listener)
	}

	if _, err := s.boss.OnComplete(args[0], listener); err != nil {
		return err
	}
	if !watchJSON {
		pterm.Info.Printf("%s Watching %s for completions (Ctrl+C to stop)\n", sym.Notify, args[0])
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.boss.Stop(stopCtx)
}
