package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/boss/sym"
)

// FetchCmd claims jobs and prints them
var FetchCmd = &cobra.Command{
	Use:   "fetch <queue>",
	Short: sym.Claim + " Claim jobs from a queue",
	Long: sym.Claim + ` fetch — Claim jobs from a queue

Claims up to -n created jobs, oldest first, moves them to active and prints
them. The caller is then responsible for "boss complete" or "boss fail".
Nothing is printed when the queue has no created jobs.

Examples:
  boss fetch emails
  boss fetch emails -n 10 -o yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

// CompletedCmd shows the last resolved job of a queue
var CompletedCmd = &cobra.Command{
	Use:   "completed <queue>",
	Short: "Show the most recently resolved job of a queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompleted,
}

var (
	fetchBatch      int
	fetchFormat     string
	completedFormat string
)

func init() {
	FetchCmd.Flags().IntVarP(&fetchBatch, "batch", "n", 1, "Maximum number of jobs to claim")
	FetchCmd.Flags().StringVarP(&fetchFormat, "output", "o", formatJSON, "Output format: json, yaml")
	CompletedCmd.Flags().StringVarP(&completedFormat, "output", "o", formatJSON, "Output format: json, yaml")
}

func runFetch(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	jobs, err := s.boss.Fetch(cmd.Context(), args[0], fetchBatch)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}
	return writeJobs(cmd.OutOrStdout(), fetchFormat, jobs)
}

func runCompleted(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	job, err := s.boss.FetchCompleted(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if job == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "No resolved jobs in %s\n", args[0])
		return nil
	}
	return writeJobs(cmd.OutOrStdout(), completedFormat, job)
}
