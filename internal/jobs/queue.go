package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"artie/internal/catalog"
	"artie/internal/logging"
	"artie/internal/romscan"
	"artie/internal/scraper"
)

// ErrAlreadyInProgress signals a duplicate enqueue for an active target.
var ErrAlreadyInProgress = errors.New("scrape already in progress for target")

// ErrUnknownJob signals an ID the queue has never seen (or already dropped).
var ErrUnknownJob = errors.New("unknown job id")

// State is a job's lifecycle phase.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateAborted   State = "aborted"
)

// Request describes one scrape intent. An empty RomPath targets the whole
// system.
type Request struct {
	System  string
	RomPath string
	Kinds   []catalog.MediaKind
}

// UnitFailure records one failed unit for the completion report.
type UnitFailure struct {
	RomPath string
	Kind    catalog.MediaKind
	Reason  string
}

// Snapshot is a point-in-time copy of a job's progress, safe to retain.
type Snapshot struct {
	ID         string
	System     string
	RomPath    string
	State      State
	Counters   scraper.Counters
	Failures   []UnitFailure
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Err        string
}

// Executor runs all requested media kinds for one ROM.
type Executor interface {
	ScrapeRom(ctx context.Context, rom romscan.Entry, kinds []catalog.MediaKind, cancelled func() bool, report func(scraper.UnitResult))
}

// Inventory lists and locates ROMs; satisfied by *romscan.Scanner.
type Inventory interface {
	Scan(system string) ([]romscan.Entry, error)
	Find(system, relPath string) (romscan.Entry, error)
}

type job struct {
	id  string
	req Request

	mu        sync.Mutex
	state     State
	counters  scraper.Counters
	failures  []UnitFailure
	enqueued  time.Time
	started   time.Time
	finished  time.Time
	runErr    string
	cancelled bool
	fatal     string

	done chan struct{}
}

// Queue schedules scrape jobs over a bounded worker pool.
type Queue struct {
	executor  Executor
	inventory Inventory
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sem    chan struct{}

	mu            sync.Mutex
	jobs          map[string]*job
	activePairs   map[string]string // system\x00rom -> job id
	activeSystems map[string]string // system -> whole-system job id
}

// NewQueue builds a queue executing at most workers units concurrently.
func NewQueue(executor Executor, inventory Inventory, workers int, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		executor:      executor,
		inventory:     inventory,
		logger:        logging.NewComponentLogger(logger, "jobs"),
		ctx:           ctx,
		cancel:        cancel,
		sem:           make(chan struct{}, workers),
		jobs:          make(map[string]*job),
		activePairs:   make(map[string]string),
		activeSystems: make(map[string]string),
	}
}

// Enqueue registers a scrape job and starts it. Exactly one job may be
// active per (system, rom) pair; a whole-system job claims every pair in its
// system.
func (q *Queue) Enqueue(req Request) (string, error) {
	if strings.TrimSpace(req.System) == "" {
		return "", errors.New("jobs: system is required")
	}
	if len(req.Kinds) == 0 {
		return "", errors.New("jobs: at least one media kind is required")
	}

	q.mu.Lock()
	if err := q.checkConflictLocked(req); err != nil {
		q.mu.Unlock()
		return "", err
	}
	j := &job{
		id:       uuid.NewString(),
		req:      req,
		state:    StateQueued,
		enqueued: time.Now().UTC(),
		done:     make(chan struct{}),
	}
	q.jobs[j.id] = j
	if req.RomPath == "" {
		q.activeSystems[req.System] = j.id
	} else {
		q.activePairs[pairKey(req.System, req.RomPath)] = j.id
	}
	q.mu.Unlock()

	q.logger.Info("job enqueued",
		logging.String(logging.FieldEventType, "job_enqueued"),
		logging.String(logging.FieldJobID, j.id),
		logging.String(logging.FieldSystem, req.System),
		logging.String(logging.FieldRom, req.RomPath))

	q.wg.Add(1)
	go q.run(j)
	return j.id, nil
}

// Cancel requests cooperative cancellation of a job. Running units observe
// the flag at their next state transition; queued work is dropped outright.
func (q *Queue) Cancel(jobID string) error {
	q.mu.Lock()
	j, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return ErrUnknownJob
	}
	j.mu.Lock()
	j.cancelled = true
	j.mu.Unlock()
	q.logger.Info("job cancellation requested",
		logging.String(logging.FieldEventType, "job_cancel_requested"),
		logging.String(logging.FieldJobID, jobID))
	return nil
}

// Status returns a snapshot of a job's progress.
func (q *Queue) Status(jobID string) (Snapshot, error) {
	q.mu.Lock()
	j, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrUnknownJob
	}
	return j.snapshot(), nil
}

// Await blocks until the job reaches a terminal state or ctx expires.
func (q *Queue) Await(ctx context.Context, jobID string) (Snapshot, error) {
	q.mu.Lock()
	j, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return Snapshot{}, ErrUnknownJob
	}
	select {
	case <-ctx.Done():
		return j.snapshot(), ctx.Err()
	case <-j.done:
		return j.snapshot(), nil
	}
}

// Shutdown cancels the queue's root context (pending rate-limiter waits fail
// with Cancelled) and waits for workers to drain.
func (q *Queue) Shutdown() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) run(j *job) {
	defer q.wg.Done()
	defer q.release(j)

	j.mu.Lock()
	alreadyCancelled := j.cancelled
	j.state = StateRunning
	j.started = time.Now().UTC()
	j.mu.Unlock()

	if alreadyCancelled {
		q.finish(j, StateCancelled, "")
		return
	}

	roms, err := q.targetRoms(j.req)
	if err != nil {
		q.finish(j, StateAborted, err.Error())
		return
	}

	group := new(errgroup.Group)
	for _, rom := range roms {
		if j.isHalted() || q.ctx.Err() != nil {
			break
		}
		acquired := false
		select {
		case q.sem <- struct{}{}:
			acquired = true
		case <-q.ctx.Done():
		}
		if !acquired {
			break
		}
		rom := rom
		group.Go(func() error {
			defer func() { <-q.sem }()
			q.executor.ScrapeRom(q.ctx, rom, j.req.Kinds, j.isHalted, func(result scraper.UnitResult) {
				j.record(result)
			})
			return nil
		})
	}
	_ = group.Wait()

	final := StateCompleted
	reason := ""
	if fatal := j.fatalReason(); fatal != "" {
		final = StateAborted
		reason = fatal
	} else if j.isCancelled() || q.ctx.Err() != nil {
		final = StateCancelled
	}
	q.finish(j, final, reason)
}

func (q *Queue) finish(j *job, state State, reason string) {
	j.mu.Lock()
	j.state = state
	j.runErr = reason
	j.finished = time.Now().UTC()
	counters := j.counters
	j.mu.Unlock()
	close(j.done)

	q.logger.Info("job finished",
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String(logging.FieldJobID, j.id),
		logging.String("state", string(state)),
		logging.Int("succeeded", counters.Succeeded),
		logging.Int("skipped_cached", counters.SkippedCache),
		logging.Int("unresolved", counters.Unresolved),
		logging.Int("failed", counters.Failed))
}

func (q *Queue) release(j *job) {
	q.mu.Lock()
	if j.req.RomPath == "" {
		delete(q.activeSystems, j.req.System)
	} else {
		delete(q.activePairs, pairKey(j.req.System, j.req.RomPath))
	}
	q.mu.Unlock()
}

func (q *Queue) targetRoms(req Request) ([]romscan.Entry, error) {
	if req.RomPath != "" {
		rom, err := q.inventory.Find(req.System, req.RomPath)
		if err != nil {
			return nil, err
		}
		return []romscan.Entry{rom}, nil
	}
	roms, err := q.inventory.Scan(req.System)
	if err != nil {
		return nil, err
	}
	if len(roms) == 0 {
		return nil, fmt.Errorf("no roms found for system %s", req.System)
	}
	return roms, nil
}

func (q *Queue) checkConflictLocked(req Request) error {
	if _, busy := q.activeSystems[req.System]; busy {
		return ErrAlreadyInProgress
	}
	if req.RomPath != "" {
		if _, busy := q.activePairs[pairKey(req.System, req.RomPath)]; busy {
			return ErrAlreadyInProgress
		}
		return nil
	}
	// A whole-system job claims every pair in the system.
	prefix := req.System + "\x00"
	for key := range q.activePairs {
		if strings.HasPrefix(key, prefix) {
			return ErrAlreadyInProgress
		}
	}
	return nil
}

func (j *job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// isHalted reports whether scheduling further units is pointless: the job was
// cancelled, or a unit hit a fatal error (bad credentials poisons every
// remaining catalog call, so the job stops spending its rate budget).
func (j *job) isHalted() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled || j.fatal != ""
}

func (j *job) fatalReason() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fatal
}

func (j *job) record(result scraper.UnitResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.counters.Record(result.Outcome)
	if result.Outcome == scraper.OutcomeFailed {
		j.failures = append(j.failures, UnitFailure{
			RomPath: result.Rom.RelPath,
			Kind:    result.Kind,
			Reason:  result.Reason,
		})
	}
	if result.Fatal && j.fatal == "" {
		j.fatal = result.Reason
	}
}

func (j *job) snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:         j.id,
		System:     j.req.System,
		RomPath:    j.req.RomPath,
		State:      j.state,
		Counters:   j.counters,
		Failures:   append([]UnitFailure(nil), j.failures...),
		EnqueuedAt: j.enqueued,
		StartedAt:  j.started,
		FinishedAt: j.finished,
		Err:        j.runErr,
	}
}

func pairKey(system, romPath string) string {
	return system + "\x00" + romPath
}
