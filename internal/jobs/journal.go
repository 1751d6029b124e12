package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Terminal reports whether a job state can no longer change.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateAborted:
		return true
	}
	return false
}

// Journal persists job snapshots and cancel requests as files so separate
// invocations can inspect and cancel jobs owned by a running scrape process.
// The owning process records snapshots periodically and polls for cancel
// markers; readers only ever see whole files thanks to temp-file renames.
type Journal struct {
	dir string
}

// NewJournal opens (creating if needed) a journal directory.
func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	return &Journal{dir: dir}, nil
}

// Record writes the snapshot for its job, replacing any previous record.
func (jl *Journal) Record(s Snapshot) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(jl.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("stage job snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write job snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close job snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), jl.snapshotPath(s.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit job snapshot: %w", err)
	}
	return nil
}

// Get loads one recorded snapshot.
func (jl *Journal) Get(jobID string) (Snapshot, error) {
	data, err := os.ReadFile(jl.snapshotPath(jobID))
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, ErrUnknownJob
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read job snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode job snapshot %s: %w", jobID, err)
	}
	return s, nil
}

// List returns every recorded snapshot, newest first.
func (jl *Journal) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(jl.dir)
	if err != nil {
		return nil, fmt.Errorf("list journal: %w", err)
	}
	var snapshots []Snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		s, err := jl.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		snapshots = append(snapshots, s)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].EnqueuedAt.After(snapshots[j].EnqueuedAt)
	})
	return snapshots, nil
}

// RequestCancel drops a cancel marker for a recorded, still-active job. The
// owning process honors the marker on its next poll.
func (jl *Journal) RequestCancel(jobID string) error {
	s, err := jl.Get(jobID)
	if err != nil {
		return err
	}
	if s.State.Terminal() {
		return fmt.Errorf("job %s already %s", jobID, s.State)
	}
	if err := os.WriteFile(jl.cancelPath(jobID), nil, 0o644); err != nil {
		return fmt.Errorf("write cancel marker: %w", err)
	}
	return nil
}

// CancelRequested reports whether a cancel marker exists for the job.
func (jl *Journal) CancelRequested(jobID string) bool {
	_, err := os.Stat(jl.cancelPath(jobID))
	return err == nil
}

// ClearCancel removes a consumed cancel marker.
func (jl *Journal) ClearCancel(jobID string) {
	_ = os.Remove(jl.cancelPath(jobID))
}

func (jl *Journal) snapshotPath(jobID string) string {
	return filepath.Join(jl.dir, jobID+".json")
}

func (jl *Journal) cancelPath(jobID string) string {
	return filepath.Join(jl.dir, jobID+".cancel")
}
