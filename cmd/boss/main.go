package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/boss/cmd/boss/commands"
	"github.com/teranos/boss/logger"
)

var rootCmd = &cobra.Command{
	Use:   "boss",
	Short: "boss - durable SQL-backed job queue",
	Long: `boss - durable job queue on SQLite or PostgreSQL.

Producers publish jobs to named queues, workers claim and resolve them, and
listeners are told about every job that completed or failed. All state lives
in the database, so any number of boss processes can share one queue.

Available commands:
  publish   - Publish a job to a queue
  fetch     - Claim jobs from a queue
  complete  - Mark active jobs completed
  fail      - Mark active jobs failed
  show      - Show a job
  ls        - List jobs
  completed - Show the most recently resolved job of a queue
  work      - Run a command for every job of a queue
  watch     - Print completion notifications of a queue
  archive   - Move old resolved jobs into the archive table
  stats     - Show job counts per queue and state
  db        - Manage the boss database
  config    - Show, create or check configuration
  version   - Show version information

Examples:
  boss publish emails '{"to":"ada@example.com"}'
  boss work emails -- ./send-email.sh
  boss watch emails
  boss stats`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		commands.Verbosity, _ = cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonLogs, commands.Verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&commands.ConfigPath, "config", "", "Config file (default: /etc/boss, ~/.boss, ./boss.toml cascade)")

	rootCmd.AddCommand(commands.PublishCmd)
	rootCmd.AddCommand(commands.FetchCmd)
	rootCmd.AddCommand(commands.CompleteCmd)
	rootCmd.AddCommand(commands.FailCmd)
	rootCmd.AddCommand(commands.ShowCmd)
	rootCmd.AddCommand(commands.LsCmd)
	rootCmd.AddCommand(commands.CompletedCmd)
	rootCmd.AddCommand(commands.WorkCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.ArchiveCmd)
	rootCmd.AddCommand(commands.StatsCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		commands.PrintError(os.Stderr, err)
		os.Exit(commands.ExitCode(err))
	}
}
