package scraper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"artie/internal/cachestore"
	"artie/internal/catalog"
	"artie/internal/config"
	"artie/internal/faults"
	"artie/internal/identity"
	"artie/internal/logging"
	"artie/internal/maskproc"
	"artie/internal/romscan"
)

// Resolver is the slice of the identity layer the orchestrator needs.
type Resolver interface {
	Resolve(ctx context.Context, rom romscan.Entry) (*identity.Resolution, error)
}

// MediaFetcher is the slice of the catalog client the orchestrator needs.
type MediaFetcher interface {
	FetchMedia(ctx context.Context, game *catalog.Game, kind catalog.MediaKind) (catalog.MediaPayload, error)
}

// Orchestrator executes scrape units against the cache, catalog, and mask
// processor. It holds no per-job state; everything job-scoped lives in the
// romRun created per ScrapeRom call.
type Orchestrator struct {
	cfg      *config.Config
	fetcher  MediaFetcher
	resolver Resolver
	store    *cachestore.Store
	masks    *maskproc.Processor
	logger   *slog.Logger
}

// New builds an Orchestrator.
func New(cfg *config.Config, fetcher MediaFetcher, resolver Resolver, store *cachestore.Store, masks *maskproc.Processor, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		fetcher:  fetcher,
		resolver: resolver,
		store:    store,
		masks:    masks,
		logger:   logging.NewComponentLogger(logger, "scraper"),
	}
}

// romRun shares one identity resolution across every media kind of a ROM.
type romRun struct {
	once       sync.Once
	resolution *identity.Resolution
	err        error
}

// ScrapeRom processes every requested media kind for one ROM, reporting each
// unit's terminal outcome. cancelled is polled at state transitions; report
// must be safe for the caller's concurrency model (units of one ROM run
// sequentially here).
func (o *Orchestrator) ScrapeRom(ctx context.Context, rom romscan.Entry, kinds []catalog.MediaKind, cancelled func() bool, report func(UnitResult)) {
	run := &romRun{}
	for _, kind := range kinds {
		result := o.runUnit(ctx, rom, kind, run, cancelled)
		o.logUnit(result)
		report(result)
		if result.Fatal {
			return
		}
	}
}

func (o *Orchestrator) runUnit(ctx context.Context, rom romscan.Entry, kind catalog.MediaKind, run *romRun, cancelled func() bool) UnitResult {
	result := UnitResult{Rom: rom, Kind: kind}
	fail := func(err error) UnitResult {
		result.Outcome = OutcomeFailed
		result.Reason = err.Error()
		result.Fatal = faults.Fatal(err)
		return result
	}

	// Pending -> Resolving
	if isCancelled(ctx, cancelled) {
		return cancel(result)
	}
	resolution, err := o.resolveOnce(ctx, rom, run)
	if err != nil {
		if errors.Is(err, faults.ErrUnresolved) || errors.Is(err, faults.ErrNotFound) {
			result.Outcome = OutcomeUnresolved
			result.Reason = err.Error()
			return result
		}
		return fail(err)
	}

	// Resolving -> CacheCheck
	if isCancelled(ctx, cancelled) {
		return cancel(result)
	}
	maskSettings, maskFingerprint, err := o.maskFor(kind)
	if err != nil {
		return fail(err)
	}
	finalKey := cachestore.Key{System: rom.System, RomPath: rom.RelPath, Kind: kind, MaskFingerprint: maskFingerprint}
	if hit, err := o.validEntry(ctx, finalKey); err != nil {
		return fail(err)
	} else if hit {
		result.Outcome = OutcomeSkippedCache
		return result
	}

	// CacheCheck -> Fetching
	if isCancelled(ctx, cancelled) {
		return cancel(result)
	}
	raw, err := o.obtainRaw(ctx, rom, kind, resolution)
	if err != nil {
		if errors.Is(err, catalog.ErrMediaUnavailable) || errors.Is(err, faults.ErrNotFound) {
			result.Outcome = OutcomeMissing
			result.Reason = err.Error()
			return result
		}
		return fail(err)
	}

	data := raw.data
	sourceVersion := raw.sourceVersion

	// Fetching -> Masking (optional)
	if maskFingerprint != "" {
		if isCancelled(ctx, cancelled) {
			return cancel(result)
		}
		data, err = o.masks.Apply(raw.data, maskSettings)
		if err != nil {
			return fail(err)
		}
	}

	// Masking -> Committing
	if isCancelled(ctx, cancelled) {
		return cancel(result)
	}
	if _, err := o.store.Put(ctx, finalKey, data, sourceVersion); err != nil {
		return fail(err)
	}

	// Committing -> Done
	result.Outcome = OutcomeSucceeded
	return result
}

func (o *Orchestrator) resolveOnce(ctx context.Context, rom romscan.Entry, run *romRun) (*identity.Resolution, error) {
	run.once.Do(func() {
		run.resolution, run.err = o.resolver.Resolve(ctx, rom)
	})
	return run.resolution, run.err
}

// maskFor returns the mask settings and fingerprint for a kind, or empty
// values when no mask applies (mask disabled, text kind, or kind unmapped).
func (o *Orchestrator) maskFor(kind catalog.MediaKind) (maskproc.Settings, string, error) {
	if !kind.Maskable() {
		return maskproc.Settings{}, "", nil
	}
	path := o.cfg.MaskPathFor(string(kind))
	if path == "" {
		return maskproc.Settings{}, "", nil
	}
	mode, _ := maskproc.ParseBlendMode(o.cfg.Mask.Settings.BlendMode)
	settings := maskproc.Settings{
		MaskPath: path,
		Opacity:  o.cfg.Mask.Settings.Opacity,
		Mode:     mode,
	}
	fingerprint, err := o.masks.Fingerprint(settings)
	if err != nil {
		return maskproc.Settings{}, "", err
	}
	return settings, fingerprint, nil
}

// validEntry reports whether the cache holds a servable entry for key.
// An entry that fails verification is corruption: it is invalidated and
// logged, and the unit proceeds as a miss; corrupt bytes are never served.
func (o *Orchestrator) validEntry(ctx context.Context, key cachestore.Key) (bool, error) {
	entry, err := o.store.Lookup(ctx, key)
	if errors.Is(err, cachestore.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	valid, err := o.store.Verify(ctx, entry, false)
	if err != nil {
		return false, err
	}
	if !valid {
		o.logger.Warn("cache entry failed verification; refetching",
			logging.String(logging.FieldEventType, "cache_corruption"),
			logging.String(logging.FieldSystem, key.System),
			logging.String(logging.FieldRom, key.RomPath),
			logging.String(logging.FieldMediaKind, string(key.Kind)))
		if err := o.store.Invalidate(ctx, key); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

type rawAsset struct {
	data          []byte
	sourceVersion string
}

// obtainRaw returns the un-masked asset bytes, preferring a valid raw cache
// entry over a network fetch. Fetched bytes are committed under the raw key
// before masking so a later mask toggle never re-downloads.
func (o *Orchestrator) obtainRaw(ctx context.Context, rom romscan.Entry, kind catalog.MediaKind, resolution *identity.Resolution) (rawAsset, error) {
	rawKey := cachestore.Key{System: rom.System, RomPath: rom.RelPath, Kind: kind}
	if hit, err := o.validEntry(ctx, rawKey); err != nil {
		return rawAsset{}, err
	} else if hit {
		entry, err := o.store.Lookup(ctx, rawKey)
		if err == nil {
			if data, readErr := os.ReadFile(entry.FilePath); readErr == nil {
				return rawAsset{data: data, sourceVersion: entry.SourceVersion}, nil
			}
		}
		// The file became unreadable under us. Drop the stale row before the
		// re-put; Put renames new bytes over the same path first, and a crash
		// in that window would leave the old checksum indexed against them.
		if err := o.store.Invalidate(ctx, rawKey); err != nil {
			return rawAsset{}, err
		}
	}

	payload, err := o.fetcher.FetchMedia(ctx, &resolution.Game, kind)
	if err != nil {
		return rawAsset{}, err
	}
	if _, err := o.store.Put(ctx, rawKey, payload.Data, payload.SourceVersion); err != nil {
		return rawAsset{}, err
	}
	return rawAsset{data: payload.Data, sourceVersion: payload.SourceVersion}, nil
}

func (o *Orchestrator) logUnit(result UnitResult) {
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "unit_finished"),
		logging.String(logging.FieldSystem, result.Rom.System),
		logging.String(logging.FieldRom, result.Rom.RelPath),
		logging.String(logging.FieldMediaKind, string(result.Kind)),
		logging.String(logging.FieldOutcome, string(result.Outcome)),
	}
	if result.Reason != "" {
		attrs = append(attrs, logging.String(logging.FieldReason, result.Reason))
	}
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	switch result.Outcome {
	case OutcomeFailed:
		o.logger.Error("scrape unit failed", args...)
	case OutcomeUnresolved, OutcomeMissing:
		o.logger.Info("scrape unit skipped", args...)
	default:
		o.logger.Debug("scrape unit finished", args...)
	}
}

func isCancelled(ctx context.Context, cancelled func() bool) bool {
	if ctx.Err() != nil {
		return true
	}
	return cancelled != nil && cancelled()
}

func cancel(result UnitResult) UnitResult {
	result.Outcome = OutcomeCancelled
	return result
}
