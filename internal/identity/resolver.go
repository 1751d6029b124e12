package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"artie/internal/catalog"
	"artie/internal/faults"
	"artie/internal/logging"
	"artie/internal/romscan"
)

// Strategy names the stage that produced a resolution.
type Strategy string

const (
	StrategyChecksum  Strategy = "checksum-exact"
	StrategyNameExact Strategy = "name-exact"
	StrategyNameFuzzy Strategy = "name-fuzzy"
)

// Resolution is the outcome of mapping a ROM to a catalog record. It lives
// only for the duration of the job that requested it.
type Resolution struct {
	Game       catalog.Game
	Strategy   Strategy
	Confidence float64
}

// Searcher is the slice of the catalog client the resolver needs.
type Searcher interface {
	SearchByChecksum(ctx context.Context, systemID, crc32 string, size int64, filename string) (*catalog.Game, error)
	SearchByName(ctx context.Context, systemID, name string) ([]catalog.Game, error)
}

// Resolver runs the staged matching strategies.
type Resolver struct {
	client    Searcher
	hints     *HintStore
	threshold float64
	logger    *slog.Logger
}

// NewResolver builds a Resolver. threshold is the minimum fuzzy similarity in
// (0,1] a candidate must reach; hints may be nil.
func NewResolver(client Searcher, hints *HintStore, threshold float64, logger *slog.Logger) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	return &Resolver{
		client:    client,
		hints:     hints,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "identity"),
	}
}

// Resolve maps a ROM to a catalog record. The remembered strategy for this
// ROM runs first, then the remaining stages in confidence order. A nil error
// with a non-nil Resolution is the only success shape; an Unresolved ROM
// returns a faults.ErrUnresolved-tagged error carrying the reason.
func (r *Resolver) Resolve(ctx context.Context, rom romscan.Entry) (*Resolution, error) {
	order := []Strategy{StrategyChecksum, StrategyNameExact, StrategyNameFuzzy}
	if hinted, ok := r.hints.Lookup(rom.System, rom.RelPath); ok {
		order = promoteStrategy(order, hinted)
	}

	// Name stages share one search call; cache its result across stages.
	var candidates []catalog.Game
	candidatesFetched := false
	cleaned := CleanName(rom.Name)

	var lastErr error
	for _, strategy := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var (
			resolution *Resolution
			err        error
		)
		switch strategy {
		case StrategyChecksum:
			resolution, err = r.resolveByChecksum(ctx, rom)
		case StrategyNameExact, StrategyNameFuzzy:
			if !candidatesFetched {
				candidates, err = r.searchCandidates(ctx, rom.System, cleaned)
				candidatesFetched = true
			}
			if err == nil {
				if strategy == StrategyNameExact {
					resolution = matchExactName(candidates, cleaned)
				} else {
					resolution = r.matchFuzzyName(candidates, cleaned)
				}
			}
		}
		if err != nil {
			if faults.Expected(err) {
				continue
			}
			lastErr = err
			continue
		}
		if resolution != nil {
			r.hints.Store(rom.System, rom.RelPath, resolution.Strategy)
			r.logger.Debug("rom resolved",
				logging.String(logging.FieldEventType, "rom_resolved"),
				logging.String(logging.FieldSystem, rom.System),
				logging.String(logging.FieldRom, rom.RelPath),
				logging.String("strategy", string(resolution.Strategy)),
				logging.Float64("confidence", resolution.Confidence))
			return resolution, nil
		}
	}

	if lastErr != nil && !faults.Expected(lastErr) {
		return nil, lastErr
	}
	return nil, faults.Wrap(faults.ErrUnresolved, "identity", "resolve",
		fmt.Sprintf("no strategy matched %q", rom.Name), nil)
}

func (r *Resolver) resolveByChecksum(ctx context.Context, rom romscan.Entry) (*Resolution, error) {
	crc, err := romscan.Checksum(rom.Path)
	if err != nil {
		return nil, err
	}
	game, err := r.client.SearchByChecksum(ctx, rom.System, crc, rom.Size, rom.Name)
	if err != nil {
		return nil, err
	}
	return &Resolution{Game: *game, Strategy: StrategyChecksum, Confidence: 1.0}, nil
}

func (r *Resolver) searchCandidates(ctx context.Context, system, cleaned string) ([]catalog.Game, error) {
	if cleaned == "" {
		return nil, faults.Wrap(faults.ErrUnresolved, "identity", "search", "empty cleaned name", nil)
	}
	games, err := r.client.SearchByName(ctx, system, cleaned)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return games, nil
}

func matchExactName(candidates []catalog.Game, cleaned string) *Resolution {
	want := normalizeForCompare(cleaned)
	if want == "" {
		return nil
	}
	for _, game := range candidates {
		for _, name := range append([]string{game.Name}, game.AltNames...) {
			if normalizeForCompare(name) == want {
				return &Resolution{Game: game, Strategy: StrategyNameExact, Confidence: 1.0}
			}
		}
	}
	return nil
}

// matchFuzzyName ranks every candidate name by normalized Levenshtein
// similarity and accepts the best one at or above the threshold. Ties go to
// the earlier candidate, preserving the API's own relevance order.
func (r *Resolver) matchFuzzyName(candidates []catalog.Game, cleaned string) *Resolution {
	var best *Resolution
	for _, game := range candidates {
		for _, name := range append([]string{game.Name}, game.AltNames...) {
			score := similarity(cleaned, name)
			if score < r.threshold {
				continue
			}
			if best == nil || score > best.Confidence {
				matched := game
				best = &Resolution{Game: matched, Strategy: StrategyNameFuzzy, Confidence: score}
			}
		}
	}
	return best
}

func promoteStrategy(order []Strategy, first Strategy) []Strategy {
	out := make([]Strategy, 0, len(order))
	out = append(out, first)
	for _, strategy := range order {
		if strategy != first {
			out = append(out, strategy)
		}
	}
	return out
}
