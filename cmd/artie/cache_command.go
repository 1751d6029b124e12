package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"artie/internal/cachestore"
	"artie/internal/logging"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache maintenance utilities",
	}
	cacheCmd.AddCommand(newCacheVerifyCommand(ctx))
	cacheCmd.AddCommand(newCacheRepairCommand(ctx))
	cacheCmd.AddCommand(newCachePurgeCommand(ctx))
	return cacheCmd
}

func openCacheStore(ctx *commandContext) (*cachestore.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cachestore.Open(cfg.Paths.CacheDir, logging.NewNop())
}

func newCacheVerifyCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check cached assets against the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := store.Audit(cmd.Context(), full)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked %d entries.\n", report.Checked)
			if len(report.Corrupt) == 0 {
				fmt.Fprintln(out, "No corruption found.")
				return nil
			}
			for _, key := range report.Corrupt {
				fmt.Fprintf(out, "  corrupt: %s/%s [%s]\n", key.System, key.RomPath, key.Kind)
			}
			return fmt.Errorf("%d corrupt entries; run `artie cache repair`", len(report.Corrupt))
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Recompute content checksums instead of stat-only checks")
	return cmd
}

func newCacheRepairCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Purge corrupt entries and sweep orphaned files",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			audit, err := store.Audit(cmd.Context(), true)
			if err != nil {
				return err
			}
			for _, key := range audit.Corrupt {
				if err := store.Invalidate(cmd.Context(), key); err != nil {
					return err
				}
			}
			report, err := store.Repair(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Repair complete: %d corrupt entries purged, %d stale index rows removed, %d orphan files deleted.\n",
				len(audit.Corrupt), report.EntriesPurged, report.OrphansRemoved)
			return nil
		},
	}
}

func newCachePurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <system> [rom]",
		Short: "Remove cached media for a system or a single ROM",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCacheStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			var removed int
			if len(args) == 2 {
				removed, err = store.PurgeRom(cmd.Context(), args[0], args[1])
			} else {
				removed, err = store.PurgeSystem(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached entries.\n", removed)
			return nil
		},
	}
}
