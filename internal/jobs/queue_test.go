package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"artie/internal/catalog"
	"artie/internal/logging"
	"artie/internal/romscan"
	"artie/internal/scraper"
)

type fakeInventory struct {
	roms map[string][]romscan.Entry
	err  error
}

func (f *fakeInventory) Scan(system string) ([]romscan.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.roms[system], nil
}

func (f *fakeInventory) Find(system, relPath string) (romscan.Entry, error) {
	if f.err != nil {
		return romscan.Entry{}, f.err
	}
	for _, rom := range f.roms[system] {
		if rom.RelPath == relPath {
			return rom, nil
		}
	}
	return romscan.Entry{}, fmt.Errorf("rom %s not found", relPath)
}

// blockingExecutor parks each ROM until release is closed, so tests can
// observe jobs in their running state.
type blockingExecutor struct {
	started chan string
	release chan struct{}
}

func (e *blockingExecutor) ScrapeRom(ctx context.Context, rom romscan.Entry, kinds []catalog.MediaKind, cancelled func() bool, report func(scraper.UnitResult)) {
	if e.started != nil {
		e.started <- rom.RelPath
	}
	if e.release != nil {
		<-e.release
	}
	for _, kind := range kinds {
		outcome := scraper.OutcomeSucceeded
		if cancelled != nil && cancelled() {
			outcome = scraper.OutcomeCancelled
		}
		report(scraper.UnitResult{Rom: rom, Kind: kind, Outcome: outcome})
	}
}

func snesInventory(roms ...string) *fakeInventory {
	entries := make([]romscan.Entry, 0, len(roms))
	for _, rom := range roms {
		entries = append(entries, romscan.Entry{System: "snes", RelPath: rom, Name: rom})
	}
	return &fakeInventory{roms: map[string][]romscan.Entry{"snes": entries}}
}

func awaitSnapshot(t *testing.T, q *Queue, id string) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snapshot, err := q.Await(ctx, id)
	if err != nil {
		t.Fatalf("Await(%s): %v", id, err)
	}
	return snapshot
}

func TestEnqueueRunsWholeSystem(t *testing.T) {
	executor := &blockingExecutor{}
	q := NewQueue(executor, snesInventory("Mario.sfc", "Zelda.sfc"), 2, logging.NewNop())
	defer q.Shutdown()

	id, err := q.Enqueue(Request{System: "snes", Kinds: []catalog.MediaKind{catalog.MediaBox2D, catalog.MediaScreenshot}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	snapshot := awaitSnapshot(t, q, id)
	if snapshot.State != StateCompleted {
		t.Fatalf("State = %q, want completed", snapshot.State)
	}
	if snapshot.Counters.Attempted != 4 || snapshot.Counters.Succeeded != 4 {
		t.Fatalf("Counters = %+v, want 4 units over 2 roms x 2 kinds", snapshot.Counters)
	}
}

func TestEnqueueValidatesRequest(t *testing.T) {
	q := NewQueue(&blockingExecutor{}, snesInventory(), 1, logging.NewNop())
	defer q.Shutdown()

	if _, err := q.Enqueue(Request{Kinds: []catalog.MediaKind{catalog.MediaBox2D}}); err == nil {
		t.Error("missing system must be rejected")
	}
	if _, err := q.Enqueue(Request{System: "snes"}); err == nil {
		t.Error("missing kinds must be rejected")
	}
}

func TestDuplicateTargetsAreRejected(t *testing.T) {
	executor := &blockingExecutor{
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	q := NewQueue(executor, snesInventory("Mario.sfc", "Zelda.sfc"), 2, logging.NewNop())
	defer q.Shutdown()

	kinds := []catalog.MediaKind{catalog.MediaBox2D}
	id, err := q.Enqueue(Request{System: "snes", RomPath: "Mario.sfc", Kinds: kinds})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-executor.started

	// Same ROM again.
	if _, err := q.Enqueue(Request{System: "snes", RomPath: "Mario.sfc", Kinds: kinds}); !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("duplicate rom err = %v, want ErrAlreadyInProgress", err)
	}
	// Whole system that contains the active ROM.
	if _, err := q.Enqueue(Request{System: "snes", Kinds: kinds}); !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("system over active rom err = %v, want ErrAlreadyInProgress", err)
	}
	// A different ROM in the same system is fine.
	otherID, err := q.Enqueue(Request{System: "snes", RomPath: "Zelda.sfc", Kinds: kinds})
	if err != nil {
		t.Fatalf("other rom Enqueue: %v", err)
	}

	close(executor.release)
	awaitSnapshot(t, q, id)
	awaitSnapshot(t, q, otherID)

	// After completion the target frees up.
	executor.release = nil
	executor.started = nil
	retryID, err := q.Enqueue(Request{System: "snes", RomPath: "Mario.sfc", Kinds: kinds})
	if err != nil {
		t.Fatalf("re-enqueue after completion: %v", err)
	}
	awaitSnapshot(t, q, retryID)
}

func TestSystemJobBlocksRomJobs(t *testing.T) {
	executor := &blockingExecutor{
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	q := NewQueue(executor, snesInventory("Mario.sfc"), 1, logging.NewNop())
	defer q.Shutdown()

	kinds := []catalog.MediaKind{catalog.MediaBox2D}
	id, err := q.Enqueue(Request{System: "snes", Kinds: kinds})
	if err != nil {
		t.Fatalf("Enqueue system: %v", err)
	}
	<-executor.started

	if _, err := q.Enqueue(Request{System: "snes", RomPath: "Mario.sfc", Kinds: kinds}); !errors.Is(err, ErrAlreadyInProgress) {
		t.Fatalf("rom under active system err = %v, want ErrAlreadyInProgress", err)
	}

	close(executor.release)
	awaitSnapshot(t, q, id)
}

func TestCancelStopsRemainingRoms(t *testing.T) {
	executor := &blockingExecutor{
		started: make(chan string, 4),
		release: make(chan struct{}, 4),
	}
	q := NewQueue(executor, snesInventory("A.sfc", "B.sfc", "C.sfc"), 1, logging.NewNop())
	defer q.Shutdown()

	id, err := q.Enqueue(Request{System: "snes", Kinds: []catalog.MediaKind{catalog.MediaBox2D}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	<-executor.started
	if err := q.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	executor.release <- struct{}{}
	executor.release <- struct{}{}
	executor.release <- struct{}{}

	snapshot := awaitSnapshot(t, q, id)
	if snapshot.State != StateCancelled {
		t.Fatalf("State = %q, want cancelled", snapshot.State)
	}
	if snapshot.Counters.Attempted >= 3 {
		t.Fatalf("Attempted = %d, cancel must stop scheduling remaining roms", snapshot.Counters.Attempted)
	}
}

func TestScanFailureAbortsJob(t *testing.T) {
	inventory := &fakeInventory{err: errors.New("roms dir unreadable")}
	q := NewQueue(&blockingExecutor{}, inventory, 1, logging.NewNop())
	defer q.Shutdown()

	id, err := q.Enqueue(Request{System: "snes", Kinds: []catalog.MediaKind{catalog.MediaBox2D}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	snapshot := awaitSnapshot(t, q, id)
	if snapshot.State != StateAborted {
		t.Fatalf("State = %q, want aborted", snapshot.State)
	}
	if snapshot.Err == "" {
		t.Error("aborted job must carry the failure reason")
	}
}

func TestFailedUnitsAreReported(t *testing.T) {
	q := NewQueue(failingExecutor{}, snesInventory("A.sfc"), 1, logging.NewNop())
	defer q.Shutdown()

	id, err := q.Enqueue(Request{System: "snes", Kinds: []catalog.MediaKind{catalog.MediaBox2D}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	snapshot := awaitSnapshot(t, q, id)
	if snapshot.State != StateCompleted {
		t.Fatalf("State = %q", snapshot.State)
	}
	if snapshot.Counters.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", snapshot.Counters.Failed)
	}
	if len(snapshot.Failures) != 1 || snapshot.Failures[0].Reason != "boom" {
		t.Fatalf("Failures = %+v", snapshot.Failures)
	}
}

type failingExecutor struct{}

func (failingExecutor) ScrapeRom(ctx context.Context, rom romscan.Entry, kinds []catalog.MediaKind, cancelled func() bool, report func(scraper.UnitResult)) {
	for _, kind := range kinds {
		report(scraper.UnitResult{Rom: rom, Kind: kind, Outcome: scraper.OutcomeFailed, Reason: "boom"})
	}
}

// fatalExecutor reports a fatal failure for the first ROM it sees; any ROM
// scheduled afterwards observes the halt flag and reports cancelled.
type fatalExecutor struct{}

func (fatalExecutor) ScrapeRom(ctx context.Context, rom romscan.Entry, kinds []catalog.MediaKind, cancelled func() bool, report func(scraper.UnitResult)) {
	if cancelled != nil && cancelled() {
		report(scraper.UnitResult{Rom: rom, Kind: kinds[0], Outcome: scraper.OutcomeCancelled})
		return
	}
	report(scraper.UnitResult{
		Rom:     rom,
		Kind:    kinds[0],
		Outcome: scraper.OutcomeFailed,
		Reason:  "invalid credentials",
		Fatal:   true,
	})
}

func TestFatalUnitAbortsJob(t *testing.T) {
	q := NewQueue(fatalExecutor{}, snesInventory("A.sfc", "B.sfc", "C.sfc"), 1, logging.NewNop())
	defer q.Shutdown()

	id, err := q.Enqueue(Request{System: "snes", Kinds: []catalog.MediaKind{catalog.MediaBox2D}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	snapshot := awaitSnapshot(t, q, id)
	if snapshot.State != StateAborted {
		t.Fatalf("State = %q, want aborted", snapshot.State)
	}
	if snapshot.Err != "invalid credentials" {
		t.Fatalf("Err = %q, want the fatal reason", snapshot.Err)
	}
	if snapshot.Counters.Attempted >= 3 {
		t.Fatalf("Attempted = %d, a fatal unit must stop scheduling remaining roms", snapshot.Counters.Attempted)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	q := NewQueue(&blockingExecutor{}, snesInventory(), 1, logging.NewNop())
	defer q.Shutdown()

	if _, err := q.Status("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("err = %v, want ErrUnknownJob", err)
	}
	if err := q.Cancel("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("err = %v, want ErrUnknownJob", err)
	}
}
