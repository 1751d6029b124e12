package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"artie/internal/jobs"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Request cancellation of a running scrape job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			journal, err := jobs.NewJournal(journalDir(cfg))
			if err != nil {
				return err
			}
			if err := journal.RequestCancel(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Cancellation requested for %s; in-flight units finish before the job stops.\n", args[0])
			return nil
		},
	}
}
