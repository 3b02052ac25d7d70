// Package store indexes pipeline runs and persisted frames in SQLite.
//
// A run row is opened when the pipeline starts Running and closed with its
// final counters at Stopped. Every still the Write stage persists gets a
// frames row carrying its sequence number, save variant, and path so the CLI
// can list what a run produced without walking the output directory.
//
// The schema version lives in PRAGMA user_version. On a mismatch Open fails
// and users delete captures.db to adopt the new schema.
package store
