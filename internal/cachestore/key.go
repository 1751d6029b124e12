package cachestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"artie/internal/catalog"
)

// Key identifies one cached asset. MaskFingerprint is empty for the raw
// downloaded asset and carries the mask-configuration hash for composited
// derivatives, so changing the mask naturally misses old composites.
type Key struct {
	System          string
	RomPath         string
	Kind            catalog.MediaKind
	MaskFingerprint string
}

// Masked reports whether the key addresses a mask-composited derivative.
func (k Key) Masked() bool { return k.MaskFingerprint != "" }

// romID derives the stable filename stem for a ROM from its relative path.
func romID(romPath string) string {
	sum := sha256.Sum256([]byte(romPath))
	return hex.EncodeToString(sum[:6])
}

// assetFileName builds the deterministic on-disk name for a cache key.
func assetFileName(key Key) string {
	name := fmt.Sprintf("%s-%s", romID(key.RomPath), key.Kind)
	if key.Masked() {
		short := key.MaskFingerprint
		if len(short) > 12 {
			short = short[:12]
		}
		name += "-m" + short
	}
	return name + key.Kind.Ext()
}

// assetPath returns the absolute path for a cache key under the cache root.
func assetPath(root string, key Key) string {
	return filepath.Join(root, key.System, assetFileName(key))
}
