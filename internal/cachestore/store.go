package cachestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"artie/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current index schema version. Bump when the schema
// changes; stale caches are cheap to rebuild, so there are no migrations.
const schemaVersion = 1

// ErrMiss is returned by Lookup when no entry exists for a key.
var ErrMiss = errors.New("cache miss")

// ErrSchemaMismatch indicates the index was written by an incompatible version.
var ErrSchemaMismatch = errors.New("cache schema version mismatch")

const commitShards = 16

// Store manages the cache index and its backing files.
type Store struct {
	db     *sql.DB
	root   string
	lock   *flock.Flock
	logger *slog.Logger

	// commitLocks serialize Put/Invalidate per key shard so two workers never
	// race on the same entry while unrelated downloads stay parallel.
	commitLocks [commitShards]sync.Mutex
}

// Open initializes or connects to the cache index under root. The directory
// is flock-guarded: a second process gets an immediate error instead of a
// corrupted index.
func Open(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ensure cache root: %w", err)
	}

	lock := flock.New(filepath.Join(root, ".artie.lock"))
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !held {
		return nil, errors.New("cache root is locked by another process")
	}

	dbPath := filepath.Join(root, "index.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open cache index: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		root:   root,
		lock:   lock,
		logger: logging.NewComponentLogger(logger, "cachestore"),
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close releases the database and the cache-root lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create cache schema: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read cache schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: index has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, filepath.Join(s.root, "index.db"))
	}
	return nil
}

func (s *Store) commitLock(key Key) *sync.Mutex {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(key.System))
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.Write([]byte(key.RomPath))
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.Write([]byte(key.Kind))
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.Write([]byte(key.MaskFingerprint))
	return &s.commitLocks[hasher.Sum32()%commitShards]
}
