// Package config loads, normalizes, and validates the scraper's TOML
// configuration.
//
// The core pipeline consumes the typed Config produced here; nothing outside
// this package parses configuration files. Validation failures are startup
// errors; once a Config is handed to the pipeline it is assumed usable.
package config
