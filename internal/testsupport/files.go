package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"artie/internal/config"
)

// WriteFile fills the target path with the provided bytes, creating parent
// directories as needed.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SeedRom places a ROM file under the config's directory for the given system
// and returns its absolute path.
func SeedRom(t testing.TB, cfg *config.Config, system, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(cfg.SystemRomsDir(system), name)
	WriteFile(t, path, data)
	return path
}
