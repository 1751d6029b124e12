package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RomsDir string `toml:"roms_dir"`
	// SystemOverrides maps a system identifier to a ROM directory that
	// replaces the default <roms_dir>/<system> layout.
	SystemOverrides map[string]string `toml:"system_overrides"`
	CacheDir        string            `toml:"cache_dir"`
	LogDir          string            `toml:"log_dir"`
	HintDBPath      string            `toml:"hint_db_path"`
}

// Catalog contains credentials and tuning for the remote game catalog API.
type Catalog struct {
	BaseURL        string   `toml:"base_url"`
	Username       string   `toml:"username"`
	Password       string   `toml:"password"`
	Softname       string   `toml:"softname"`
	Regions        []string `toml:"regions"`
	MediaWidth     int      `toml:"media_width"`
	MediaHeight    int      `toml:"media_height"`
	RequestTimeout int      `toml:"request_timeout"`
	MaxRetries     int      `toml:"max_retries"`
}

// RateLimit tunes the shared token bucket guarding outbound API calls.
type RateLimit struct {
	RequestsPerMinute int `toml:"requests_per_minute"`
	Burst             int `toml:"burst"`
}

// Scraper contains worker-pool sizing and the media kinds to fetch.
type Scraper struct {
	Workers        int      `toml:"workers"`
	MediaKinds     []string `toml:"media_kinds"`
	FuzzyThreshold float64  `toml:"fuzzy_threshold"`
}

// MaskSettings selects per-media-kind overlay masks.
type MaskSettings struct {
	BoxArtMask  string  `toml:"box_art_mask"`
	PreviewMask string  `toml:"preview_mask"`
	Opacity     float64 `toml:"opacity"`
	BlendMode   string  `toml:"blend_mode"`
}

// Mask controls overlay compositing of downloaded artwork.
type Mask struct {
	Apply    bool         `toml:"apply_mask"`
	Dir      string       `toml:"mask_path"`
	Settings MaskSettings `toml:"mask_settings"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the scraper.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Catalog   Catalog   `toml:"catalog"`
	RateLimit RateLimit `toml:"rate_limit"`
	Scraper   Scraper   `toml:"scraper"`
	Mask      Mask      `toml:"mask"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/artie/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return value
// is the resolved path, the third reports whether a file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// EnsureDirectories creates the directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir, filepath.Dir(c.Paths.HintDBPath)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SystemRomsDir returns the ROM directory for a system, honoring overrides.
func (c *Config) SystemRomsDir(system string) string {
	if override, ok := c.Paths.SystemOverrides[system]; ok && strings.TrimSpace(override) != "" {
		return override
	}
	return filepath.Join(c.Paths.RomsDir, system)
}

// MaskPathFor returns the configured mask file for a media kind, or "" when
// no mask applies. Box kinds share the box-art mask; screenshot and mix
// renders use the preview mask.
func (c *Config) MaskPathFor(kind string) string {
	if !c.Mask.Apply {
		return ""
	}
	var name string
	switch kind {
	case "box-2D", "box-3D", "marquee":
		name = c.Mask.Settings.BoxArtMask
	case "screenshot", "mixrbv1", "mixrbv2":
		name = c.Mask.Settings.PreviewMask
	default:
		return ""
	}
	if strings.TrimSpace(name) == "" {
		return ""
	}
	return filepath.Join(c.Mask.Dir, name)
}

func resolveConfigPath(path string) (string, bool, error) {
	candidate := strings.TrimSpace(path)
	if candidate == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		candidate = defaultPath
	}
	expanded, err := expandPath(candidate)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return expanded, true, nil
}
