package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"artie/internal/catalog"
	"artie/internal/faults"
	"artie/internal/logging"
	"artie/internal/romscan"
)

type fakeSearcher struct {
	checksumGame *catalog.Game
	checksumErr  error
	nameGames    []catalog.Game
	nameErr      error

	calls []string
}

func (f *fakeSearcher) SearchByChecksum(ctx context.Context, systemID, crc32 string, size int64, filename string) (*catalog.Game, error) {
	f.calls = append(f.calls, "checksum")
	if f.checksumErr != nil {
		return nil, f.checksumErr
	}
	return f.checksumGame, nil
}

func (f *fakeSearcher) SearchByName(ctx context.Context, systemID, name string) ([]catalog.Game, error) {
	f.calls = append(f.calls, "name")
	if f.nameErr != nil {
		return nil, f.nameErr
	}
	return f.nameGames, nil
}

func testRom(t *testing.T, name string) romscan.Entry {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("rom-bytes"), 0o644); err != nil {
		t.Fatalf("write rom: %v", err)
	}
	return romscan.Entry{System: "26", Path: path, RelPath: name, Name: name, Size: 9}
}

func TestResolveByChecksum(t *testing.T) {
	searcher := &fakeSearcher{checksumGame: &catalog.Game{ID: "42", Name: "Super Metroid"}}
	resolver := NewResolver(searcher, nil, 0.5, logging.NewNop())

	res, err := resolver.Resolve(context.Background(), testRom(t, "Super Metroid (USA).sfc"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Strategy != StrategyChecksum || res.Confidence != 1.0 {
		t.Fatalf("resolution = %+v", res)
	}
	if res.Game.ID != "42" {
		t.Fatalf("Game.ID = %q", res.Game.ID)
	}
	if len(searcher.calls) != 1 {
		t.Fatalf("calls = %v, checksum hit must short-circuit", searcher.calls)
	}
}

func TestResolveFallsBackToExactName(t *testing.T) {
	searcher := &fakeSearcher{
		checksumErr: catalog.ErrNotFound,
		nameGames: []catalog.Game{
			{ID: "1", Name: "Some Other Game"},
			{ID: "2", Name: "Super Metroid"},
		},
	}
	resolver := NewResolver(searcher, nil, 0.5, logging.NewNop())

	res, err := resolver.Resolve(context.Background(), testRom(t, "Super Metroid (USA) [!].sfc"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Strategy != StrategyNameExact {
		t.Fatalf("Strategy = %q, want name-exact", res.Strategy)
	}
	if res.Game.ID != "2" {
		t.Fatalf("Game.ID = %q", res.Game.ID)
	}
	// Exact and fuzzy stages must share one search call.
	nameCalls := 0
	for _, call := range searcher.calls {
		if call == "name" {
			nameCalls++
		}
	}
	if nameCalls != 1 {
		t.Fatalf("name search called %d times, want 1", nameCalls)
	}
}

func TestResolveMatchesAltNameExactly(t *testing.T) {
	searcher := &fakeSearcher{
		checksumErr: catalog.ErrNotFound,
		nameGames: []catalog.Game{
			{ID: "9", Name: "Seiken Densetsu 2", AltNames: []string{"Secret of Mana"}},
		},
	}
	resolver := NewResolver(searcher, nil, 0.5, logging.NewNop())

	res, err := resolver.Resolve(context.Background(), testRom(t, "Secret of Mana (Europe).sfc"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Strategy != StrategyNameExact || res.Game.ID != "9" {
		t.Fatalf("resolution = %+v", res)
	}
}

func TestResolveFuzzyAcceptsAboveThreshold(t *testing.T) {
	searcher := &fakeSearcher{
		checksumErr: catalog.ErrNotFound,
		nameGames:   []catalog.Game{{ID: "3", Name: "Super Metroid"}},
	}
	resolver := NewResolver(searcher, nil, 0.5, logging.NewNop())

	// Garbled dump name: no exact match, fuzzy should still clear 0.5.
	res, err := resolver.Resolve(context.Background(), testRom(t, "Super Metroyd (USA).sfc"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Strategy != StrategyNameFuzzy {
		t.Fatalf("Strategy = %q, want name-fuzzy", res.Strategy)
	}
	if res.Confidence <= 0.5 || res.Confidence >= 1 {
		t.Fatalf("Confidence = %v", res.Confidence)
	}
}

func TestResolveFuzzyRejectsBelowThreshold(t *testing.T) {
	searcher := &fakeSearcher{
		checksumErr: catalog.ErrNotFound,
		nameGames:   []catalog.Game{{ID: "3", Name: "Completely Different Title"}},
	}
	resolver := NewResolver(searcher, nil, 0.9, logging.NewNop())

	_, err := resolver.Resolve(context.Background(), testRom(t, "Super Metroid (USA).sfc"))
	if !errors.Is(err, faults.ErrUnresolved) {
		t.Fatalf("err = %v, want ErrUnresolved", err)
	}
}

func TestResolveUnresolvedWhenNothingMatches(t *testing.T) {
	searcher := &fakeSearcher{
		checksumErr: catalog.ErrNotFound,
		nameErr:     catalog.ErrNotFound,
	}
	resolver := NewResolver(searcher, nil, 0.5, logging.NewNop())

	_, err := resolver.Resolve(context.Background(), testRom(t, "Obscure Homebrew.gba"))
	if !errors.Is(err, faults.ErrUnresolved) {
		t.Fatalf("err = %v, want ErrUnresolved", err)
	}
}

func TestResolvePromotesHintedStrategy(t *testing.T) {
	hintPath := filepath.Join(t.TempDir(), "hints.db")
	hints, err := OpenHints(hintPath, logging.NewNop())
	if err != nil {
		t.Fatalf("OpenHints: %v", err)
	}
	defer hints.Close()

	rom := testRom(t, "Super Metroid (USA).sfc")
	searcher := &fakeSearcher{
		checksumErr: catalog.ErrNotFound,
		nameGames:   []catalog.Game{{ID: "2", Name: "Super Metroid"}},
	}
	resolver := NewResolver(searcher, hints, 0.5, logging.NewNop())
	if _, err := resolver.Resolve(context.Background(), rom); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if hinted, ok := hints.Lookup(rom.System, rom.RelPath); !ok || hinted != StrategyNameExact {
		t.Fatalf("hint = %q, %v", hinted, ok)
	}

	// Second resolve must try the remembered stage before the checksum stage.
	second := &fakeSearcher{
		checksumErr: catalog.ErrNotFound,
		nameGames:   []catalog.Game{{ID: "2", Name: "Super Metroid"}},
	}
	resolver = NewResolver(second, hints, 0.5, logging.NewNop())
	if _, err := resolver.Resolve(context.Background(), rom); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if len(second.calls) == 0 || second.calls[0] != "name" {
		t.Fatalf("calls = %v, want name search first", second.calls)
	}
}

func TestHintStoreNoopWithoutPath(t *testing.T) {
	hints, err := OpenHints("", logging.NewNop())
	if err != nil {
		t.Fatalf("OpenHints: %v", err)
	}
	defer hints.Close()

	hints.Store("26", "rom.sfc", StrategyChecksum)
	if _, ok := hints.Lookup("26", "rom.sfc"); ok {
		t.Fatal("no-op store must not remember hints")
	}
}
