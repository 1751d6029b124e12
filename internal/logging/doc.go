// Package logging assembles structured slog loggers shared across the
// scraper's components.
//
// It owns the console/JSON handler selection, level and output plumbing, and
// exposes a no-op logger plus component tagging helpers so every package emits
// events with the same shape. Prefer these constructors over hand-rolled slog
// setup.
package logging
