// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// The service is registered as "Framewatch" with two methods: Status, which
// returns the daemon and pipeline snapshot, and Stop, which asks the active
// run to drain. Keep request and response types here so the wire format
// stays in one place.
package ipc
