// Package cachestore owns the durable media cache: asset files on disk plus a
// SQLite index mapping (system, rom path, media kind, mask state) to asset
// metadata.
//
// The index is the single source of truth. Asset bytes always land through a
// temp-file-and-rename so a crash mid-write never leaves the index pointing
// at a partial file; the filesystem is only scanned during an explicit Repair.
// All writes go through this package; other components read through Lookup.
package cachestore
