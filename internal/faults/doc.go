// Package faults defines the error taxonomy shared by the pipeline, its
// collaborators, and the CLI.
//
// Only configuration errors are fatal, and only before the pipeline is live.
// Transient admission failures, malformed data, and wait timeouts are
// classified so callers can log them at the right severity and keep running.
package faults
