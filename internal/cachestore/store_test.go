package cachestore_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"artie/internal/cachestore"
	"artie/internal/catalog"
	"artie/internal/logging"
	"artie/internal/testsupport"
)

func rawKey(rom string, kind catalog.MediaKind) cachestore.Key {
	return cachestore.Key{System: "snes", RomPath: rom, Kind: kind}
}

func TestPutLookupRoundtrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	data := []byte("box art bytes")
	key := rawKey("Mario.sfc", catalog.MediaBox2D)
	put, err := store.Put(ctx, key, data, "remote-md5")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Lookup(ctx, key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.FilePath != put.FilePath {
		t.Errorf("FilePath = %q, want %q", got.FilePath, put.FilePath)
	}
	sum := sha256.Sum256(data)
	if got.Checksum != hex.EncodeToString(sum[:]) {
		t.Errorf("Checksum = %q", got.Checksum)
	}
	if got.SourceVersion != "remote-md5" {
		t.Errorf("SourceVersion = %q", got.SourceVersion)
	}
	onDisk, err := os.ReadFile(got.FilePath)
	if err != nil {
		t.Fatalf("read asset: %v", err)
	}
	if string(onDisk) != string(data) {
		t.Errorf("asset bytes = %q", onDisk)
	}
	if got.MaskApplied() {
		t.Error("raw entry must not report a mask")
	}
}

func TestLookupMiss(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Lookup(context.Background(), rawKey("Nothing.sfc", catalog.MediaBox2D))
	if !errors.Is(err, cachestore.ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss", err)
	}
}

func TestPutReplacesExistingEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	key := rawKey("Mario.sfc", catalog.MediaScreenshot)

	if _, err := store.Put(ctx, key, []byte("old"), "v1"); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := store.Put(ctx, key, []byte("new"), "v2"); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	entry, err := store.Lookup(ctx, key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if entry.SourceVersion != "v2" {
		t.Errorf("SourceVersion = %q, want v2", entry.SourceVersion)
	}
	onDisk, _ := os.ReadFile(entry.FilePath)
	if string(onDisk) != "new" {
		t.Errorf("asset bytes = %q, want new", onDisk)
	}
}

func TestMaskedAndRawEntriesAreIndependent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	raw := rawKey("Mario.sfc", catalog.MediaBox2D)
	masked := raw
	masked.MaskFingerprint = "abcdef0123456789"

	if _, err := store.Put(ctx, raw, []byte("raw"), ""); err != nil {
		t.Fatalf("Put raw: %v", err)
	}
	if _, err := store.Put(ctx, masked, []byte("masked"), ""); err != nil {
		t.Fatalf("Put masked: %v", err)
	}

	rawEntry, err := store.Lookup(ctx, raw)
	if err != nil {
		t.Fatalf("Lookup raw: %v", err)
	}
	maskedEntry, err := store.Lookup(ctx, masked)
	if err != nil {
		t.Fatalf("Lookup masked: %v", err)
	}
	if rawEntry.FilePath == maskedEntry.FilePath {
		t.Fatal("raw and masked entries must use distinct files")
	}
	if !maskedEntry.MaskApplied() {
		t.Error("masked entry must report its mask")
	}

	if err := store.Invalidate(ctx, masked); err != nil {
		t.Fatalf("Invalidate masked: %v", err)
	}
	if _, err := store.Lookup(ctx, raw); err != nil {
		t.Fatalf("raw entry must survive masked invalidation: %v", err)
	}
}

func TestInvalidateRemovesEntryAndFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	key := rawKey("Mario.sfc", catalog.MediaBox2D)

	entry, err := store.Put(ctx, key, []byte("bytes"), "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := store.Lookup(ctx, key); !errors.Is(err, cachestore.ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss", err)
	}
	if _, err := os.Stat(entry.FilePath); !os.IsNotExist(err) {
		t.Fatalf("asset file should be gone, stat err = %v", err)
	}
	// Invalidating a missing key is a no-op.
	if err := store.Invalidate(ctx, key); err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	key := rawKey("Mario.sfc", catalog.MediaBox2D)

	entry, err := store.Put(ctx, key, []byte("pristine"), "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if ok, err := store.Verify(ctx, entry, true); err != nil || !ok {
		t.Fatalf("full verify of pristine entry = %v, %v", ok, err)
	}

	if err := os.WriteFile(entry.FilePath, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	// Cheap check only stats; same-size-ish tampering slips past it.
	if ok, err := store.Verify(ctx, entry, false); err != nil || !ok {
		t.Fatalf("cheap verify = %v, %v", ok, err)
	}
	if ok, err := store.Verify(ctx, entry, true); err != nil || ok {
		t.Fatalf("full verify of tampered entry = %v, %v, want false", ok, err)
	}

	if err := os.Truncate(entry.FilePath, 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if ok, _ := store.Verify(ctx, entry, false); ok {
		t.Fatal("cheap verify must reject an empty file")
	}
}

func TestRepairSweepsOrphansAndStaleRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	kept, err := store.Put(ctx, rawKey("Kept.sfc", catalog.MediaBox2D), []byte("kept"), "")
	if err != nil {
		t.Fatalf("Put kept: %v", err)
	}
	stale, err := store.Put(ctx, rawKey("Stale.sfc", catalog.MediaBox2D), []byte("stale"), "")
	if err != nil {
		t.Fatalf("Put stale: %v", err)
	}
	if err := os.Remove(stale.FilePath); err != nil {
		t.Fatalf("remove stale file: %v", err)
	}

	systemDir := filepath.Dir(kept.FilePath)
	orphan := filepath.Join(systemDir, "orphan.png")
	if err := os.WriteFile(orphan, []byte("orphan"), 0o644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}
	leftover := filepath.Join(systemDir, ".tmp-123")
	if err := os.WriteFile(leftover, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write leftover: %v", err)
	}

	report, err := store.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if report.EntriesPurged != 1 {
		t.Errorf("EntriesPurged = %d, want 1", report.EntriesPurged)
	}
	if report.OrphansRemoved != 2 {
		t.Errorf("OrphansRemoved = %d, want 2 (orphan + tmp leftover)", report.OrphansRemoved)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan file should be gone")
	}
	if _, err := os.Stat(kept.FilePath); err != nil {
		t.Errorf("kept asset should survive repair: %v", err)
	}
	if _, err := store.Lookup(ctx, rawKey("Stale.sfc", catalog.MediaBox2D)); !errors.Is(err, cachestore.ErrMiss) {
		t.Errorf("stale row should be purged, err = %v", err)
	}
}

func TestAuditReportsCorruptEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	good := rawKey("Good.sfc", catalog.MediaBox2D)
	bad := rawKey("Bad.sfc", catalog.MediaBox2D)
	if _, err := store.Put(ctx, good, []byte("good"), ""); err != nil {
		t.Fatalf("Put good: %v", err)
	}
	badEntry, err := store.Put(ctx, bad, []byte("bad"), "")
	if err != nil {
		t.Fatalf("Put bad: %v", err)
	}
	if err := os.WriteFile(badEntry.FilePath, []byte("flipped bits"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	report, err := store.Audit(ctx, true)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.Checked != 2 {
		t.Errorf("Checked = %d, want 2", report.Checked)
	}
	if len(report.Corrupt) != 1 || report.Corrupt[0].RomPath != "Bad.sfc" {
		t.Errorf("Corrupt = %+v", report.Corrupt)
	}
}

func TestPurgeRomAndSystem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	raw := rawKey("Mario.sfc", catalog.MediaBox2D)
	masked := raw
	masked.MaskFingerprint = "feedface00000000"
	other := rawKey("Zelda.sfc", catalog.MediaScreenshot)

	for _, key := range []cachestore.Key{raw, masked, other} {
		if _, err := store.Put(ctx, key, []byte("x"), ""); err != nil {
			t.Fatalf("Put %+v: %v", key, err)
		}
	}

	removed, err := store.PurgeRom(ctx, "snes", "Mario.sfc")
	if err != nil {
		t.Fatalf("PurgeRom: %v", err)
	}
	if removed != 2 {
		t.Errorf("PurgeRom removed = %d, want raw+masked", removed)
	}
	if _, err := store.Lookup(ctx, other); err != nil {
		t.Errorf("other rom must survive PurgeRom: %v", err)
	}

	removed, err = store.PurgeSystem(ctx, "snes")
	if err != nil {
		t.Fatalf("PurgeSystem: %v", err)
	}
	if removed != 1 {
		t.Errorf("PurgeSystem removed = %d, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "snes")); !os.IsNotExist(err) {
		t.Error("system cache dir should be gone")
	}
}

func TestSystemStatsCountsRawEntriesOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	masked := rawKey("Mario.sfc", catalog.MediaBox2D)
	masked.MaskFingerprint = "feedface00000000"
	puts := []cachestore.Key{
		rawKey("Mario.sfc", catalog.MediaBox2D),
		rawKey("Zelda.sfc", catalog.MediaBox2D),
		rawKey("Mario.sfc", catalog.MediaSynopsis),
		masked,
	}
	for _, key := range puts {
		if _, err := store.Put(ctx, key, []byte("x"), ""); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	stats, err := store.SystemStats(ctx, "snes")
	if err != nil {
		t.Fatalf("SystemStats: %v", err)
	}
	if stats[catalog.MediaBox2D] != 2 {
		t.Errorf("box-2D count = %d, want 2 (mask derivative excluded)", stats[catalog.MediaBox2D])
	}
	if stats[catalog.MediaSynopsis] != 1 {
		t.Errorf("synopsis count = %d, want 1", stats[catalog.MediaSynopsis])
	}
}

func TestSecondOpenIsRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg)

	if _, err := cachestore.Open(cfg.Paths.CacheDir, logging.NewNop()); err == nil {
		t.Fatal("second Open on a locked cache root must fail")
	}
}
