package testsupport

import (
	"testing"

	"artie/internal/cachestore"
	"artie/internal/config"
	"artie/internal/logging"
)

// MustOpenStore opens a cachestore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *cachestore.Store {
	t.Helper()

	store, err := cachestore.Open(cfg.Paths.CacheDir, logging.NewNop())
	if err != nil {
		t.Fatalf("cachestore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
