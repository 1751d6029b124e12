package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var knownMediaKinds = map[string]struct{}{
	"box-2D":        {},
	"box-3D":        {},
	"mixrbv1":       {},
	"mixrbv2":       {},
	"screenshot":    {},
	"marquee":       {},
	"synopsis-text": {},
}

var knownBlendModes = map[string]struct{}{
	"overlay":  {},
	"multiply": {},
	"screen":   {},
}

// Validate ensures the configuration is usable. Any error returned here is a
// startup failure; jobs never begin against an invalid configuration.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	if err := c.validateScraper(); err != nil {
		return err
	}
	if err := c.validateMask(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RomsDir) == "" {
		return errors.New("paths.roms_dir must be set")
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must be set")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if strings.TrimSpace(c.Catalog.BaseURL) == "" {
		return errors.New("catalog.base_url must be set")
	}
	if strings.TrimSpace(c.Catalog.Username) == "" || strings.TrimSpace(c.Catalog.Password) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/artie/config.toml"
		}
		return fmt.Errorf("catalog.username and catalog.password are required; edit %s (create with 'artie config init')", defaultPath)
	}
	if c.Catalog.RequestTimeout <= 0 {
		return errors.New("catalog.request_timeout must be positive")
	}
	if c.Catalog.MaxRetries < 0 {
		return errors.New("catalog.max_retries must not be negative")
	}
	if c.Catalog.MediaWidth < 0 || c.Catalog.MediaHeight < 0 {
		return errors.New("catalog.media_width and catalog.media_height must not be negative")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("rate_limit.requests_per_minute must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return errors.New("rate_limit.burst must be positive")
	}
	return nil
}

func (c *Config) validateScraper() error {
	if c.Scraper.Workers < 1 || c.Scraper.Workers > 8 {
		return errors.New("scraper.workers must be between 1 and 8")
	}
	if len(c.Scraper.MediaKinds) == 0 {
		return errors.New("scraper.media_kinds must list at least one media kind")
	}
	for _, kind := range c.Scraper.MediaKinds {
		if _, ok := knownMediaKinds[kind]; !ok {
			return fmt.Errorf("scraper.media_kinds: unknown media kind %q", kind)
		}
	}
	if c.Scraper.FuzzyThreshold < 0 || c.Scraper.FuzzyThreshold > 1 {
		return errors.New("scraper.fuzzy_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateMask() error {
	if !c.Mask.Apply {
		return nil
	}
	if strings.TrimSpace(c.Mask.Dir) == "" {
		return errors.New("mask.mask_path must be set when mask.apply_mask is true")
	}
	if c.Mask.Settings.Opacity < 0 || c.Mask.Settings.Opacity > 1 {
		return errors.New("mask.mask_settings.opacity must be between 0 and 1")
	}
	if _, ok := knownBlendModes[c.Mask.Settings.BlendMode]; !ok {
		return fmt.Errorf("mask.mask_settings.blend_mode: unknown mode %q", c.Mask.Settings.BlendMode)
	}
	if strings.TrimSpace(c.Mask.Settings.BoxArtMask) == "" && strings.TrimSpace(c.Mask.Settings.PreviewMask) == "" {
		return errors.New("mask.mask_settings must name box_art_mask or preview_mask when apply_mask is true")
	}
	for _, kind := range c.Scraper.MediaKinds {
		path := c.MaskPathFor(kind)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("mask file for %s: %w", kind, err)
		}
	}
	return nil
}
