package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"artie/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show recorded scrape jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			journal, err := jobs.NewJournal(journalDir(cfg))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				snapshot, err := journal.Get(args[0])
				if err != nil {
					return err
				}
				printJobDetail(cmd, snapshot)
				return nil
			}

			snapshots, err := journal.List()
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				fmt.Fprintln(out, "No scrape jobs recorded.")
				return nil
			}
			rows := make([][]string, 0, len(snapshots))
			for _, snapshot := range snapshots {
				rows = append(rows, append(snapshotRow(snapshot), snapshot.EnqueuedAt.Local().Format(time.DateTime)))
			}
			fmt.Fprintln(out, renderTable(
				[]string{"JOB", "TARGET", "STATE", "OK", "CACHED", "UNRESOLVED", "MISSING", "FAILED", "ENQUEUED"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func printJobDetail(cmd *cobra.Command, s jobs.Snapshot) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", s.ID)
	fmt.Fprintf(out, "Target:   %s\n", jobTarget(s))
	fmt.Fprintf(out, "State:    %s\n", s.State)
	fmt.Fprintf(out, "Enqueued: %s\n", s.EnqueuedAt.Local().Format(time.DateTime))
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(out, "Started:  %s\n", s.StartedAt.Local().Format(time.DateTime))
	}
	if !s.FinishedAt.IsZero() {
		fmt.Fprintf(out, "Finished: %s\n", s.FinishedAt.Local().Format(time.DateTime))
	}
	c := s.Counters
	fmt.Fprintf(out, "Units:    %d attempted, %d fetched, %d cached, %d unresolved, %d missing, %d failed, %d cancelled\n",
		c.Attempted, c.Succeeded, c.SkippedCache, c.Unresolved, c.Missing, c.Failed, c.Cancelled)
	if s.Err != "" {
		fmt.Fprintf(out, "Error:    %s\n", s.Err)
	}
	for _, failure := range s.Failures {
		fmt.Fprintf(out, "  failed: %s [%s]: %s\n", failure.RomPath, failure.Kind, failure.Reason)
	}
}
