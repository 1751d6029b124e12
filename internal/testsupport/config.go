package testsupport

import (
	"path/filepath"
	"testing"

	"artie/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RomsDir = filepath.Join(base, "roms")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HintDBPath = filepath.Join(base, "hints.db")
	cfgVal.Catalog.Username = "test"
	cfgVal.Catalog.Password = "test"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithCatalogURL points the catalog client at a test server.
func WithCatalogURL(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Catalog.BaseURL = baseURL
	}
}

// WithWorkers overrides the worker-pool size on the test config.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scraper.Workers = n
	}
}

// WithMask enables mask compositing and writes solid PNG mask files for both
// mask slots under the test's base directory.
func WithMask(opacity float64, blendMode string) ConfigOption {
	return func(b *configBuilder) {
		maskDir := filepath.Join(b.baseDir, "masks")
		WritePNG(b.t, filepath.Join(maskDir, "box.png"), 64, 64, 0xff, 0xff, 0xff, 0x80)
		WritePNG(b.t, filepath.Join(maskDir, "preview.png"), 64, 64, 0x00, 0x00, 0x00, 0x80)
		b.cfg.Mask.Apply = true
		b.cfg.Mask.Dir = maskDir
		b.cfg.Mask.Settings.BoxArtMask = "box.png"
		b.cfg.Mask.Settings.PreviewMask = "preview.png"
		b.cfg.Mask.Settings.Opacity = opacity
		b.cfg.Mask.Settings.BlendMode = blendMode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
