package cachestore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"artie/internal/catalog"
	"artie/internal/logging"
)

// PurgeRom removes every cached entry (raw and masked, all kinds) for one ROM.
func (s *Store) PurgeRom(ctx context.Context, system, romPath string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT media_kind, mask_fingerprint FROM cache_entries WHERE system = ? AND rom_path = ?`,
		system, romPath)
	if err != nil {
		return 0, fmt.Errorf("list rom entries: %w", err)
	}
	var keys []Key
	for rows.Next() {
		var kind, fingerprint string
		if err := rows.Scan(&kind, &fingerprint); err != nil {
			_ = rows.Close()
			return 0, fmt.Errorf("scan rom entry: %w", err)
		}
		keys = append(keys, Key{
			System:          system,
			RomPath:         romPath,
			Kind:            catalog.MediaKind(kind),
			MaskFingerprint: fingerprint,
		})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, fmt.Errorf("iterate rom entries: %w", err)
	}
	_ = rows.Close()
	removed := 0
	for _, key := range keys {
		if err := s.Invalidate(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// PurgeSystem removes every cached entry for a system and deletes its cache
// subtree.
func (s *Store) PurgeSystem(ctx context.Context, system string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE system = ?`, system)
	if err != nil {
		return 0, fmt.Errorf("purge system index: %w", err)
	}
	affected, _ := result.RowsAffected()
	if err := os.RemoveAll(filepath.Join(s.root, system)); err != nil {
		return int(affected), fmt.Errorf("remove system cache dir: %w", err)
	}
	s.logger.Info("purged system cache",
		logging.String(logging.FieldEventType, "system_purged"),
		logging.String(logging.FieldSystem, system),
		logging.Int64("entries", affected))
	return int(affected), nil
}

// RepairReport summarizes what an explicit Repair pass changed.
type RepairReport struct {
	OrphansRemoved int
	EntriesPurged  int
}

// Repair reconciles the filesystem with the index: on-disk files with no
// index entry are orphans and get deleted; index entries whose backing file
// is missing or corrupt are purged. This is the only operation that scans the
// cache tree.
func (s *Store) Repair(ctx context.Context) (RepairReport, error) {
	report := RepairReport{}

	indexed := make(map[string]Key)
	rows, err := s.db.QueryContext(ctx,
		`SELECT system, rom_path, media_kind, mask_fingerprint, file_path FROM cache_entries`)
	if err != nil {
		return report, fmt.Errorf("list cache entries: %w", err)
	}
	type indexedEntry struct {
		key  Key
		path string
	}
	var entries []indexedEntry
	for rows.Next() {
		var key Key
		var kind, path string
		if err := rows.Scan(&key.System, &key.RomPath, &kind, &key.MaskFingerprint, &path); err != nil {
			_ = rows.Close()
			return report, fmt.Errorf("scan cache entry: %w", err)
		}
		key.Kind = catalog.MediaKind(kind)
		indexed[path] = key
		entries = append(entries, indexedEntry{key: key, path: path})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return report, fmt.Errorf("iterate cache entries: %w", err)
	}
	_ = rows.Close()

	// Purge entries whose files vanished.
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, statErr := os.Stat(entry.path); statErr == nil {
			continue
		}
		if err := s.Invalidate(ctx, entry.key); err != nil {
			return report, err
		}
		report.EntriesPurged++
	}

	// Remove files the index does not know about.
	walkErr := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if name == "index.db" || strings.HasPrefix(name, "index.db-") ||
			name == ".artie.lock" || strings.HasPrefix(name, ".tmp-") {
			if strings.HasPrefix(name, ".tmp-") {
				if removeErr := os.Remove(path); removeErr == nil {
					report.OrphansRemoved++
				}
			}
			return nil
		}
		if _, ok := indexed[path]; ok {
			return nil
		}
		if removeErr := os.Remove(path); removeErr != nil {
			return removeErr
		}
		report.OrphansRemoved++
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("sweep cache tree: %w", walkErr)
	}

	s.logger.Info("cache repair completed",
		logging.String(logging.FieldEventType, "cache_repaired"),
		logging.Int("orphans_removed", report.OrphansRemoved),
		logging.Int("entries_purged", report.EntriesPurged))
	return report, nil
}

// AuditReport summarizes a verification pass over the whole index.
type AuditReport struct {
	Checked int
	Corrupt []Key
}

// Audit verifies every indexed entry against its backing file. With full set
// the content checksum is recomputed, otherwise only existence and size are
// checked. Corrupt entries are reported, never removed; pair with Invalidate
// or Repair to act on the findings.
func (s *Store) Audit(ctx context.Context, full bool) (AuditReport, error) {
	report := AuditReport{}
	rows, err := s.db.QueryContext(ctx,
		`SELECT system, rom_path, media_kind, mask_fingerprint, file_path, checksum, source_version, created_at, verified_at
         FROM cache_entries`)
	if err != nil {
		return report, fmt.Errorf("list cache entries: %w", err)
	}
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var kind, createdAt, verifiedAt string
		if err := rows.Scan(&entry.Key.System, &entry.Key.RomPath, &kind, &entry.Key.MaskFingerprint,
			&entry.FilePath, &entry.Checksum, &entry.SourceVersion, &createdAt, &verifiedAt); err != nil {
			_ = rows.Close()
			return report, fmt.Errorf("scan cache entry: %w", err)
		}
		entry.Key.Kind = catalog.MediaKind(kind)
		entry.CreatedAt = parseTimestamp(createdAt)
		entry.VerifiedAt = parseTimestamp(verifiedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return report, fmt.Errorf("iterate cache entries: %w", err)
	}
	_ = rows.Close()

	for i := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		valid, err := s.Verify(ctx, &entries[i], full)
		if err != nil {
			return report, err
		}
		report.Checked++
		if !valid {
			report.Corrupt = append(report.Corrupt, entries[i].Key)
		}
	}
	return report, nil
}

// SystemStats reports cached entry counts per media kind for one system.
func (s *Store) SystemStats(ctx context.Context, system string) (map[catalog.MediaKind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT media_kind, COUNT(1) FROM cache_entries
         WHERE system = ? AND mask_fingerprint = ''
         GROUP BY media_kind`, system)
	if err != nil {
		return nil, fmt.Errorf("query system stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[catalog.MediaKind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("scan system stats: %w", err)
		}
		if parsed, ok := catalog.ParseMediaKind(kind); ok {
			stats[parsed] = count
		}
	}
	return stats, rows.Err()
}
