package main

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"artie/internal/cachestore"
	"artie/internal/catalog"
	"artie/internal/config"
	"artie/internal/identity"
	"artie/internal/jobs"
	"artie/internal/logging"
	"artie/internal/maskproc"
	"artie/internal/ratelimit"
	"artie/internal/romscan"
	"artie/internal/scraper"
)

// engine wires the full scrape pipeline for one process: catalog client
// behind the shared rate limiter, identity resolver with its hint store, the
// cache store, mask processor, and the job queue on top.
type engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	hints   *identity.HintStore
	store   *cachestore.Store
	scanner *romscan.Scanner
	queue   *jobs.Queue
	journal *jobs.Journal
}

func newEngine(cfg *config.Config) (*engine, error) {
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "artie.log")},
	})
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	client, err := catalog.New(catalog.Config{
		BaseURL:     cfg.Catalog.BaseURL,
		Username:    cfg.Catalog.Username,
		Password:    cfg.Catalog.Password,
		Softname:    cfg.Catalog.Softname,
		Regions:     cfg.Catalog.Regions,
		MediaWidth:  cfg.Catalog.MediaWidth,
		MediaHeight: cfg.Catalog.MediaHeight,
		MaxRetries:  cfg.Catalog.MaxRetries,
		HTTPClient:  &http.Client{Timeout: time.Duration(cfg.Catalog.RequestTimeout) * time.Second},
		Limiter:     limiter,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	hints, err := identity.OpenHints(cfg.Paths.HintDBPath, logger)
	if err != nil {
		return nil, err
	}
	resolver := identity.NewResolver(client, hints, cfg.Scraper.FuzzyThreshold, logger)

	store, err := cachestore.Open(cfg.Paths.CacheDir, logger)
	if err != nil {
		hints.Close()
		return nil, err
	}

	masks := maskproc.NewProcessor(logger)
	if cfg.Mask.Apply {
		if err := masks.Preload(maskPaths(cfg)...); err != nil {
			store.Close()
			hints.Close()
			return nil, err
		}
	}

	scanner := romscan.NewScanner(cfg, logger)
	orchestrator := scraper.New(cfg, client, resolver, store, masks, logger)
	queue := jobs.NewQueue(orchestrator, scanner, cfg.Scraper.Workers, logger)

	journal, err := jobs.NewJournal(journalDir(cfg))
	if err != nil {
		queue.Shutdown()
		store.Close()
		hints.Close()
		return nil, err
	}

	return &engine{
		cfg:     cfg,
		logger:  logger,
		hints:   hints,
		store:   store,
		scanner: scanner,
		queue:   queue,
		journal: journal,
	}, nil
}

func (e *engine) Close() {
	e.queue.Shutdown()
	if err := e.hints.Close(); err != nil {
		e.logger.Warn("close hint store", logging.Error(err))
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("close cache store", logging.Error(err))
	}
}

func journalDir(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "jobs")
}

// maskPaths collects the distinct configured mask files across all maskable
// media kinds.
func maskPaths(cfg *config.Config) []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, kind := range catalog.MediaKinds() {
		if !kind.Maskable() {
			continue
		}
		path := cfg.MaskPathFor(string(kind))
		if path == "" {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}
	return paths
}
