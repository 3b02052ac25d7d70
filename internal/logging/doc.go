// Package logging assembles the slog loggers used by the pipeline, its
// collaborators, and the CLI.
//
// It owns the console and JSON handlers, level and output plumbing, per-stage
// level overrides, and context helpers that tag lines with the run and stage
// that produced them. Lossy events that can fire at frame rate (ring
// evictions, channel drops) go through Throttle so a stalled stage cannot
// flood the log. A no-op logger is available for tests and wiring code.
package logging
