package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"artie/internal/catalog"
	"artie/internal/jobs"
	"artie/internal/logging"
	"artie/internal/romscan"
	"artie/internal/scraper"
)

const publishInterval = time.Second

// scrapeSession tracks the jobs owned by one scrape invocation. It publishes
// snapshots to the journal so other invocations can inspect them, and honors
// cancel markers those invocations drop.
type scrapeSession struct {
	eng *engine
	out io.Writer

	mu  sync.Mutex
	ids []string
}

func newScrapeSession(eng *engine, out io.Writer) *scrapeSession {
	return &scrapeSession{eng: eng, out: out}
}

// enqueue submits one request. A duplicate target is skipped, not fatal;
// watch mode fires for systems that may already be scraping.
func (s *scrapeSession) enqueue(req jobs.Request) error {
	id, err := s.eng.queue.Enqueue(req)
	if errors.Is(err, jobs.ErrAlreadyInProgress) {
		s.eng.logger.Debug("scrape target already active",
			logging.String(logging.FieldSystem, req.System),
			logging.String(logging.FieldRom, req.RomPath))
		return nil
	}
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ids = append(s.ids, id)
	s.mu.Unlock()
	s.publish()
	return nil
}

// watch blocks until ctx is cancelled, enqueueing a system scrape whenever
// its ROM directory changes.
func (s *scrapeSession) watch(ctx context.Context, kinds []catalog.MediaKind) error {
	watcher, err := romscan.NewWatcher(s.eng.cfg, s.eng.scanner, s.eng.logger)
	if err != nil {
		return err
	}
	defer watcher.Close()
	go watcher.Run(ctx)

	fmt.Fprintln(s.out, "Watching ROM directories; press Ctrl-C to stop.")
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case system, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if err := s.enqueue(jobs.Request{System: system, Kinds: kinds}); err != nil {
				return err
			}
		case <-ticker.C:
			s.publish()
		}
	}
}

// wait blocks until every job reaches a terminal state, then prints the
// summary. A first interrupt cancels cooperatively; jobs drain before return.
func (s *scrapeSession) wait(ctx context.Context) error {
	interrupted := ctx.Err() != nil
	if interrupted {
		s.cancelAll()
	}
	for !s.allTerminal() {
		if interrupted {
			time.Sleep(200 * time.Millisecond)
		} else {
			select {
			case <-ctx.Done():
				interrupted = true
				fmt.Fprintln(s.out, "Interrupt received; finishing in-flight units...")
				s.cancelAll()
			case <-time.After(publishInterval):
			}
		}
		s.publish()
	}
	s.publish()
	return s.summarize()
}

// publish records a snapshot per job and applies any pending cancel markers.
func (s *scrapeSession) publish() {
	for _, id := range s.jobIDs() {
		snapshot, err := s.eng.queue.Status(id)
		if err != nil {
			continue
		}
		if err := s.eng.journal.Record(snapshot); err != nil {
			s.eng.logger.Warn("record job snapshot",
				logging.String(logging.FieldJobID, id),
				logging.Error(err))
		}
		if !snapshot.State.Terminal() && s.eng.journal.CancelRequested(id) {
			_ = s.eng.queue.Cancel(id)
			s.eng.journal.ClearCancel(id)
		}
	}
}

func (s *scrapeSession) cancelAll() {
	for _, id := range s.jobIDs() {
		_ = s.eng.queue.Cancel(id)
	}
}

func (s *scrapeSession) allTerminal() bool {
	for _, id := range s.jobIDs() {
		snapshot, err := s.eng.queue.Status(id)
		if err != nil {
			continue
		}
		if !snapshot.State.Terminal() {
			return false
		}
	}
	return true
}

func (s *scrapeSession) jobIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func (s *scrapeSession) summarize() error {
	ids := s.jobIDs()
	if len(ids) == 0 {
		fmt.Fprintln(s.out, "Nothing to scrape.")
		return nil
	}

	var total scraper.Counters
	var failures []jobs.UnitFailure
	aborted := 0
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		snapshot, err := s.eng.queue.Status(id)
		if err != nil {
			continue
		}
		if snapshot.State == jobs.StateAborted {
			aborted++
		}
		total.Attempted += snapshot.Counters.Attempted
		total.Succeeded += snapshot.Counters.Succeeded
		total.SkippedCache += snapshot.Counters.SkippedCache
		total.Unresolved += snapshot.Counters.Unresolved
		total.Missing += snapshot.Counters.Missing
		total.Failed += snapshot.Counters.Failed
		total.Cancelled += snapshot.Counters.Cancelled
		failures = append(failures, snapshot.Failures...)
		rows = append(rows, snapshotRow(snapshot))
	}

	fmt.Fprintln(s.out, renderTable(
		[]string{"JOB", "TARGET", "STATE", "OK", "CACHED", "UNRESOLVED", "MISSING", "FAILED"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintf(s.out, "Units: %d attempted, %d fetched, %d cached, %d unresolved, %d missing, %d failed, %d cancelled\n",
		total.Attempted, total.Succeeded, total.SkippedCache, total.Unresolved, total.Missing, total.Failed, total.Cancelled)

	for _, failure := range failures {
		fmt.Fprintf(s.out, "  failed: %s [%s]: %s\n", failure.RomPath, failure.Kind, failure.Reason)
	}

	if aborted > 0 {
		return fmt.Errorf("%d job(s) aborted", aborted)
	}
	return nil
}

func snapshotRow(s jobs.Snapshot) []string {
	return []string{
		shortID(s.ID),
		jobTarget(s),
		string(s.State),
		strconv.Itoa(s.Counters.Succeeded),
		strconv.Itoa(s.Counters.SkippedCache),
		strconv.Itoa(s.Counters.Unresolved),
		strconv.Itoa(s.Counters.Missing),
		strconv.Itoa(s.Counters.Failed),
	}
}

func jobTarget(s jobs.Snapshot) string {
	if s.RomPath == "" {
		return s.System
	}
	return s.System + "/" + s.RomPath
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
