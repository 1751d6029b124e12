package identity

import (
	"log/slog"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"artie/internal/logging"
)

var hintBucket = []byte("strategy_hints")

// HintStore persists the last successful resolution strategy per ROM. An
// empty path yields a no-op store, mirroring how optional caches behave
// elsewhere in the pipeline.
type HintStore struct {
	db     *bolt.DB
	logger *slog.Logger
}

// OpenHints opens (or creates) the bolt-backed hint database.
func OpenHints(path string, logger *slog.Logger) (*HintStore, error) {
	logger = logging.NewComponentLogger(logger, "identity")
	if path == "" {
		return &HintStore{logger: logger}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(hintBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &HintStore{db: db, logger: logger}, nil
}

// Lookup returns the remembered strategy for a ROM, if any.
func (h *HintStore) Lookup(system, romPath string) (Strategy, bool) {
	if h == nil || h.db == nil {
		return "", false
	}
	var value []byte
	_ = h.db.View(func(tx *bolt.Tx) error {
		value = tx.Bucket(hintBucket).Get(hintKey(system, romPath))
		return nil
	})
	if len(value) == 0 {
		return "", false
	}
	strategy := Strategy(value)
	switch strategy {
	case StrategyChecksum, StrategyNameExact, StrategyNameFuzzy:
		return strategy, true
	default:
		return "", false
	}
}

// Store remembers the strategy that resolved a ROM. Failures are logged and
// swallowed; hints are not correctness-bearing.
func (h *HintStore) Store(system, romPath string, strategy Strategy) {
	if h == nil || h.db == nil {
		return
	}
	err := h.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(hintBucket).Put(hintKey(system, romPath), []byte(strategy))
	})
	if err != nil {
		h.logger.Warn("failed to persist strategy hint",
			logging.String(logging.FieldEventType, "hint_store_failed"),
			logging.String(logging.FieldSystem, system),
			logging.String(logging.FieldRom, romPath),
			logging.Error(err))
	}
}

// Close releases the underlying database.
func (h *HintStore) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

func hintKey(system, romPath string) []byte {
	return []byte(system + "\x00" + romPath)
}
