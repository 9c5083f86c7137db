package commands

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/boss/boss"
	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/sym"
)

// CompleteCmd completes active jobs
var CompleteCmd = &cobra.Command{
	Use:   "complete <id>...",
	Short: sym.Complete + " Mark active jobs completed",
	Long: sym.Complete + ` complete — Mark active jobs completed

Every id is resolved independently; ids that could not be completed are
listed with their reason and the command exits non-zero.

Examples:
  boss complete 3f1c... --data '{"sent":true}'
  boss fetch emails -n 5 | jq -r '.[].id' | xargs boss complete`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := completionPayload(resolveData, cmd.InOrStdin())
		if err != nil {
			return err
		}
		return runResolve(cmd, args, boss.StateCompleted, payload)
	},
}

// FailCmd fails active jobs
var FailCmd = &cobra.Command{
	Use:   "fail <id>...",
	Short: sym.Fail + " Mark active jobs failed",
	Long: sym.Fail + ` fail — Mark active jobs failed

The failure response is --data as given, or {"value": "<text>"} for
--message.

Examples:
  boss fail 3f1c... --message "mailbox full"
  boss fail 3f1c... --data '{"code":550}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := failurePayload(resolveData, resolveMessage, cmd.InOrStdin())
		if err != nil {
			return err
		}
		return runResolve(cmd, args, boss.StateFailed, payload)
	},
}

var (
	resolveData    string
	resolveMessage string
)

func init() {
	CompleteCmd.Flags().StringVar(&resolveData, "data", "", `Response JSON ("-" reads stdin)`)
	FailCmd.Flags().StringVar(&resolveData, "data", "", `Response JSON ("-" reads stdin)`)
	FailCmd.Flags().StringVar(&resolveMessage, "message", "", "Failure message stored as {\"value\": message}")
	FailCmd.MarkFlagsMutuallyExclusive("data", "message")
}

func completionPayload(data string, stdin io.Reader) (boss.Payload, error) {
	if data == "" {
		return boss.NoPayload, nil
	}
	raw, err := parseJSONArg(data, stdin)
	if err != nil {
		return boss.NoPayload, err
	}
	return boss.Structured(raw), nil
}

func failurePayload(data, message string, stdin io.Reader) (boss.Payload, error) {
	if message != "" {
		return boss.Scalar(message), nil
	}
	return completionPayload(data, stdin)
}

func runResolve(cmd *cobra.Command, ids []string, state boss.State, payload boss.Payload) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if state == boss.StateCompleted {
		err = s.boss.CompleteMany(cmd.Context(), ids, payload)
	} else {
		err = s.boss.FailMany(cmd.Context(), ids, payload)
	}
	return reportBatch(cmd.OutOrStdout(), ids, state, err)
}

// reportBatch prints one line per id and returns a summary error when any
// id could not be resolved
func reportBatch(w io.Writer, ids []string, state boss.State, err error) error {
	var batchErr *boss.BatchError
	if err != nil && !errors.As(err, &batchErr) {
		return err
	}

	symbol := sym.Complete
	if state == boss.StateFailed {
		symbol = sym.Fail
	}
	for _, id := range ids {
		if batchErr != nil {
			if jobErr := batchErr.ErrorFor(id); jobErr != nil {
				fmt.Fprintf(w, "%s %s %s\n", pterm.Red("!"), id, pterm.Gray(reason(jobErr)))
				continue
			}
		}
		fmt.Fprintf(w, "%s %s %s\n", symbol, id, state)
	}

	if batchErr != nil {
		return errors.Newf("%d of %d jobs could not be marked %s", len(batchErr.Failures), batchErr.Total, state)
	}
	return nil
}

func reason(err error) string {
	switch {
	case errors.Is(err, boss.ErrJobNotFound):
		return "not found"
	case errors.Is(err, boss.ErrJobAlreadyTerminal):
		return "already resolved"
	case errors.Is(err, boss.ErrJobNotActive):
		return "not active"
	default:
		return err.Error()
	}
}
