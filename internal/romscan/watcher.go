package romscan

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"artie/internal/config"
	"artie/internal/faults"
	"artie/internal/logging"
)

// Watcher reports which systems saw ROM files appear or disappear so callers
// can schedule a re-scan. It watches each system directory non-recursively;
// nested ROM layouts still get picked up on the next explicit scan.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	events  chan string
	roots   map[string]string // directory -> system
}

// NewWatcher starts watching every known system directory.
func NewWatcher(cfg *config.Config, scanner *Scanner, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, faults.Wrap(faults.ErrIO, "romscan", "watch", "create watcher", err)
	}

	w := &Watcher{
		watcher: fsWatcher,
		logger:  logging.NewComponentLogger(logger, "romscan"),
		events:  make(chan string, 16),
		roots:   make(map[string]string),
	}

	systems, err := scanner.Systems()
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	for _, system := range systems {
		root := cfg.SystemRomsDir(system)
		if err := fsWatcher.Add(root); err != nil {
			w.logger.Warn("cannot watch system directory",
				logging.String(logging.FieldEventType, "watch_add_failed"),
				logging.String(logging.FieldSystem, system),
				logging.Error(err))
			continue
		}
		w.roots[filepath.Clean(root)] = system
	}
	return w, nil
}

// Events yields system identifiers whose directories changed.
func (w *Watcher) Events() <-chan string { return w.events }

// Run pumps filesystem notifications until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isRomFile(filepath.Base(event.Name)) {
				continue
			}
			system, ok := w.systemFor(event.Name)
			if !ok {
				continue
			}
			select {
			case w.events <- system:
			default:
				// Consumer is behind; it will rescan anyway.
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error",
				logging.String(logging.FieldEventType, "watch_error"),
				logging.Error(err))
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) systemFor(path string) (string, bool) {
	dir := filepath.Clean(filepath.Dir(path))
	for {
		if system, ok := w.roots[dir]; ok {
			return system, true
		}
		parent := filepath.Dir(dir)
		if parent == dir || !strings.HasPrefix(dir, string(filepath.Separator)) {
			return "", false
		}
		dir = parent
	}
}
