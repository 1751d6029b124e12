package cachestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"artie/internal/faults"
	"artie/internal/logging"
)

// Entry is one persisted cache record. Invariant: FilePath must point at a
// file whose sha256 matches Checksum, or the entry is invalid and gets purged
// rather than served.
type Entry struct {
	Key           Key
	FilePath      string
	Checksum      string
	SourceVersion string
	CreatedAt     time.Time
	VerifiedAt    time.Time
}

// MaskApplied reports whether the entry holds a mask-composited derivative.
func (e *Entry) MaskApplied() bool { return e.Key.Masked() }

// Lookup returns the entry for a key or ErrMiss.
func (s *Store) Lookup(ctx context.Context, key Key) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT file_path, checksum, source_version, created_at, verified_at
         FROM cache_entries
         WHERE system = ? AND rom_path = ? AND media_kind = ? AND mask_fingerprint = ?`,
		key.System, key.RomPath, string(key.Kind), key.MaskFingerprint,
	)
	entry := Entry{Key: key}
	var createdAt, verifiedAt string
	err := row.Scan(&entry.FilePath, &entry.Checksum, &entry.SourceVersion, &createdAt, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("lookup cache entry: %w", err)
	}
	entry.CreatedAt = parseTimestamp(createdAt)
	entry.VerifiedAt = parseTimestamp(verifiedAt)
	return &entry, nil
}

// Put writes bytes to the key's deterministic path via temp-file + rename and
// then upserts the index row. The rename happens before the index update, so
// a crash between the two leaves an orphan file (cleaned by Repair), never an
// index row pointing at garbage.
func (s *Store) Put(ctx context.Context, key Key, data []byte, sourceVersion string) (*Entry, error) {
	lock := s.commitLock(key)
	lock.Lock()
	defer lock.Unlock()

	target := assetPath(s.root, key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, faults.Wrap(faults.ErrIO, "cachestore", "put", "ensure system dir", err)
	}

	if err := writeAtomic(target, data); err != nil {
		return nil, faults.Wrap(faults.ErrIO, "cachestore", "put", "write asset", err)
	}

	checksum := checksumBytes(data)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries
            (system, rom_path, media_kind, mask_fingerprint, file_path, checksum, source_version, created_at, verified_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(system, rom_path, media_kind, mask_fingerprint) DO UPDATE SET
            file_path = excluded.file_path,
            checksum = excluded.checksum,
            source_version = excluded.source_version,
            verified_at = excluded.verified_at`,
		key.System, key.RomPath, string(key.Kind), key.MaskFingerprint,
		target, checksum, sourceVersion, now, now,
	)
	if err != nil {
		return nil, faults.Wrap(faults.ErrIO, "cachestore", "put", "update index", err)
	}

	s.logger.Debug("cached asset",
		logging.String(logging.FieldEventType, "asset_cached"),
		logging.String(logging.FieldSystem, key.System),
		logging.String(logging.FieldRom, key.RomPath),
		logging.String(logging.FieldMediaKind, string(key.Kind)),
		logging.Bool("masked", key.Masked()),
		logging.Int("bytes", len(data)))

	return &Entry{
		Key:           key,
		FilePath:      target,
		Checksum:      checksum,
		SourceVersion: sourceVersion,
		CreatedAt:     parseTimestamp(now),
		VerifiedAt:    parseTimestamp(now),
	}, nil
}

// Invalidate removes the index entry and best-effort deletes the backing file.
func (s *Store) Invalidate(ctx context.Context, key Key) error {
	lock := s.commitLock(key)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.Lookup(ctx, key)
	if errors.Is(err, ErrMiss) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE system = ? AND rom_path = ? AND media_kind = ? AND mask_fingerprint = ?`,
		key.System, key.RomPath, string(key.Kind), key.MaskFingerprint,
	); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	if removeErr := os.Remove(entry.FilePath); removeErr != nil && !os.IsNotExist(removeErr) {
		s.logger.Warn("could not remove invalidated asset",
			logging.String(logging.FieldEventType, "asset_remove_failed"),
			logging.String("path", entry.FilePath),
			logging.Error(removeErr))
	}
	return nil
}

// Verify checks an entry against its backing file. A cheap check confirms
// existence and non-zero size; a full check recomputes the sha256. On any
// mismatch the entry is reported invalid; callers invalidate and re-fetch.
// A passing full check refreshes the entry's verified_at stamp.
func (s *Store) Verify(ctx context.Context, entry *Entry, full bool) (bool, error) {
	info, err := os.Stat(entry.FilePath)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false, nil
	}
	if !full {
		return true, nil
	}
	file, err := os.Open(entry.FilePath)
	if err != nil {
		return false, nil
	}
	defer file.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return false, faults.Wrap(faults.ErrIO, "cachestore", "verify", "read asset", err)
	}
	if hex.EncodeToString(hasher.Sum(nil)) != entry.Checksum {
		return false, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, _ = s.db.ExecContext(ctx,
		`UPDATE cache_entries SET verified_at = ?
         WHERE system = ? AND rom_path = ? AND media_kind = ? AND mask_fingerprint = ?`,
		now, entry.Key.System, entry.Key.RomPath, string(entry.Key.Kind), entry.Key.MaskFingerprint)
	return true, nil
}

func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func checksumBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
