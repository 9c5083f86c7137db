package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/boss/sym"
)

// ArchiveCmd moves old resolved jobs into the archive table
var ArchiveCmd = &cobra.Command{
	Use:   "archive",
	Short: sym.Archive + " Move old resolved jobs into the archive table",
	Long: sym.Archive + ` archive — Move old resolved jobs into the archive table

Completed and failed jobs resolved longer ago than --older-than are moved
from boss_jobs to boss_jobs_archive in one transaction. Jobs no completion
listener has seen yet are kept unless boss.archive_unnotified is set.

Examples:
  boss archive                    # uses boss.archive_after_hours
  boss archive --older-than 1h`,
	Args: cobra.NoArgs,
	RunE: runArchive,
}

var archiveOlderThan time.Duration

func init() {
	ArchiveCmd.Flags().DurationVar(&archiveOlderThan, "older-than", 0, "Minimum age since resolution (default from boss.archive_after_hours)")
}

func runArchive(cmd *cobra.Command, args []string) error {
	s, err := openSession(nil)
	if err != nil {
		return err
	}
	defer s.Close()

	olderThan := archiveOlderThan
	if !cmd.Flags().Changed("older-than") {
		olderThan = s.cfg.Boss.ArchiveAfter()
	}

	n, err := s.boss.Archive(cmd.Context(), olderThan)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Archived %d job(s) resolved more than %s ago\n", sym.Archive, n, olderThan)
	return nil
}
