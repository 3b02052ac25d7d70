// Package daemonctl holds the client side of process control used by the
// CLI: stopping a running framewatch over IPC with a pid-file fallback and
// assembling status snapshots when the daemon may or may not be up.
package daemonctl
