package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Normalize expands and cleans every path field and lowercases enum-like
// string options so later comparisons are exact.
func (c *Config) Normalize() error {
	pathFields := []*string{
		&c.Paths.RomsDir,
		&c.Paths.CacheDir,
		&c.Paths.LogDir,
		&c.Paths.HintDBPath,
		&c.Mask.Dir,
	}
	for _, field := range pathFields {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	for system, dir := range c.Paths.SystemOverrides {
		expanded, err := expandPath(dir)
		if err != nil {
			return err
		}
		c.Paths.SystemOverrides[system] = expanded
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Mask.Settings.BlendMode = strings.ToLower(strings.TrimSpace(c.Mask.Settings.BlendMode))
	c.Catalog.BaseURL = strings.TrimRight(strings.TrimSpace(c.Catalog.BaseURL), "/")

	for i, region := range c.Catalog.Regions {
		c.Catalog.Regions[i] = strings.ToLower(strings.TrimSpace(region))
	}

	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return filepath.Clean(abs), nil
}
