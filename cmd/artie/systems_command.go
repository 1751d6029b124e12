package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"artie/internal/cachestore"
	"artie/internal/logging"
	"artie/internal/romscan"
)

func newSystemsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "systems",
		Short: "List systems with ROM and cached media counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			scanner := romscan.NewScanner(cfg, logging.NewNop())
			store, err := cachestore.Open(cfg.Paths.CacheDir, logging.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()

			systems, err := scanner.Systems()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(systems) == 0 {
				fmt.Fprintf(out, "No system directories under %s.\n", cfg.Paths.RomsDir)
				return nil
			}

			rows := make([][]string, 0, len(systems))
			for _, system := range systems {
				roms, err := scanner.Scan(system)
				if err != nil {
					return err
				}
				stats, err := store.SystemStats(cmd.Context(), system)
				if err != nil {
					return err
				}
				cached := 0
				parts := make([]string, 0, len(stats))
				for kind, count := range stats {
					cached += count
					parts = append(parts, fmt.Sprintf("%s:%d", kind, count))
				}
				sort.Strings(parts)
				rows = append(rows, []string{
					system,
					strconv.Itoa(len(roms)),
					strconv.Itoa(cached),
					strings.Join(parts, " "),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"SYSTEM", "ROMS", "CACHED", "BY KIND"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
