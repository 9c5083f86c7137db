package commands

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/boss/boss"
	"github.com/teranos/boss/config"
	"github.com/teranos/boss/errors"
	"github.com/teranos/boss/sym"
)

// ShowCmd prints one job
var ShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// LsCmd lists jobs
var LsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List jobs",
	Long: `List jobs, oldest first.

Examples:
  boss ls --queue emails --state failed
  boss ls --limit 20 -o json`,
	Args: cobra.NoArgs,
	RunE: runLs,
}

// StatsCmd prints job counts
var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: sym.DB + " Show job counts per queue and state",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var (
	showFormat string
	lsQueue    string
	lsStates   []string
	lsLimit    int
	lsFormat   string
	statsQueue string
)

func init() {
	ShowCmd.Flags().StringVarP(&showFormat, "output", "o", formatJSON, "Output format: json, yaml")

	LsCmd.Flags().StringVar(&lsQueue, "queue", "", "Only jobs of this queue")
	LsCmd.Flags().StringSliceVar(&lsStates, "state", nil, "Only jobs in these states (created, active, completed, failed)")
	LsCmd.Flags().IntVar(&lsLimit, "limit", boss.DefaultListLimit, "Maximum number of jobs")
	LsCmd.Flags().StringVarP(&lsFormat, "output", "o", formatTable, "Output format: table, json, yaml")

	StatsCmd.Flags().StringVar(&statsQueue, "queue", "", "Only this queue")
}

func runShow(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	job, err := s.boss.GetJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeJobs(cmd.OutOrStdout(), showFormat, job)
}

func runLs(cmd *cobra.Command, args []string) error {
	opts := boss.ListOptions{Queue: lsQueue, Limit: lsLimit}
	for _, st := range lsStates {
		opts.States = append(opts.States, boss.State(st))
	}

	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	jobs, err := s.boss.List(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if lsFormat != formatTable {
		return writeJobs(cmd.OutOrStdout(), lsFormat, jobs)
	}
	if len(jobs) == 0 {
		pterm.Info.Println("No jobs")
		return nil
	}
	return renderTable(jobRows(jobs))
}

// statsRows builds one row per queue with a column per state
func statsRows(counts map[string]map[boss.State]int) [][]string {
	states := []boss.State{boss.StateCreated, boss.StateActive, boss.StateCompleted, boss.StateFailed}

	queues := make([]string, 0, len(counts))
	for q := range counts {
		queues = append(queues, q)
	}
	sort.Strings(queues)

	header := []string{"QUEUE"}
	for _, st := range states {
		header = append(header, string(st))
	}
	header = append(header, "total")

	rows := [][]string{header}
	for _, q := range queues {
		row := []string{q}
		total := 0
		for _, st := range states {
			n := counts[q][st]
			total += n
			row = append(row, strconv.Itoa(n))
		}
		rows = append(rows, append(row, strconv.Itoa(total)))
	}
	return rows
}

func runStats(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	counts, err := s.boss.Counts(cmd.Context(), statsQueue)
	if err != nil {
		return errors.Wrap(err, "failed to count jobs")
	}

	where := s.cfg.GetDatabasePath()
	if s.cfg.Database.Driver == config.DriverPostgres {
		where = "postgres"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Database: %s\n\n", sym.DB, where)

	if len(counts) == 0 {
		pterm.Info.Println("No jobs")
		return nil
	}
	return renderTable(statsRows(counts))
}
