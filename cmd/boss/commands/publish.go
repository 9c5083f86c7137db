package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/sym"
)

// PublishCmd publishes one job
var PublishCmd = &cobra.Command{
	Use:   "publish <queue> [json|-]",
	Short: sym.Publish + " Publish a job to a queue",
	Long: sym.Publish + ` publish — Publish a job to a queue

The request is a JSON document given as the second argument, or read from
stdin when the argument is "-". Without a request the job carries {}.
The new job id is printed on stdout.

Examples:
  boss publish emails '{"to":"ada@example.com"}'
  jq -c . request.json | boss publish emails -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPublish,
}

var publishCount int

func init() {
	PublishCmd.Flags().IntVarP(&publishCount, "count", "n", 1, "Publish the same request n times")
}

func runPublish(cmd *cobra.Command, args []string) error {
	if publishCount < 1 {
		return errors.NewInvalidRequestError("--count must be >= 1, got %d", publishCount)
	}

	var request any
	if len(args) == 2 {
		raw, err := parseJSONArg(args[1], cmd.InOrStdin())
		if err != nil {
			return err
		}
		request = raw
	}

	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	for range publishCount {
		id, err := s.boss.Publish(cmd.Context(), args[0], request)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
