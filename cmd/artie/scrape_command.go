package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"artie/internal/catalog"
	"artie/internal/config"
	"artie/internal/jobs"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var kindFlags []string
	var all bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "scrape [system] [rom]",
		Short: "Fetch metadata and artwork for ROMs",
		Long: `Scrape fetches the configured media kinds for a single ROM, one system,
or every system under roms_dir (--all). Assets already cached with a matching
checksum are skipped. With --watch the command keeps running and re-scrapes
systems whose ROM directories change.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !all && len(args) == 0 {
				return errors.New("name a system to scrape, or pass --all")
			}
			if all && len(args) > 0 {
				return errors.New("--all does not take positional arguments")
			}

			kinds, err := resolveKinds(cfg, kindFlags)
			if err != nil {
				return err
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var requests []jobs.Request
			if all {
				systems, err := eng.scanner.Systems()
				if err != nil {
					return err
				}
				if len(systems) == 0 {
					return fmt.Errorf("no system directories under %s", cfg.Paths.RomsDir)
				}
				for _, system := range systems {
					requests = append(requests, jobs.Request{System: system, Kinds: kinds})
				}
			} else {
				req := jobs.Request{System: args[0], Kinds: kinds}
				if len(args) == 2 {
					req.RomPath = args[1]
				}
				requests = append(requests, req)
			}

			session := newScrapeSession(eng, cmd.OutOrStdout())
			for _, req := range requests {
				if err := session.enqueue(req); err != nil {
					return err
				}
			}

			if watch {
				if err := session.watch(runCtx, kinds); err != nil {
					return err
				}
			}
			return session.wait(runCtx)
		},
	}

	cmd.Flags().StringSliceVarP(&kindFlags, "kind", "k", nil, "Media kinds to fetch (default: media_kinds from config)")
	cmd.Flags().BoolVar(&all, "all", false, "Scrape every system under roms_dir")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and re-scrape systems whose directories change")
	return cmd
}

func resolveKinds(cfg *config.Config, flags []string) ([]catalog.MediaKind, error) {
	names := flags
	if len(names) == 0 {
		names = cfg.Scraper.MediaKinds
	}
	kinds := make([]catalog.MediaKind, 0, len(names))
	for _, name := range names {
		kind, ok := catalog.ParseMediaKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown media kind %q", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
