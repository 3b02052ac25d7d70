// Package daemon coordinates the long-running framewatch process and its
// system integration points.
//
// It wires configuration, the capture index, the metrics registry, and the
// camera hotplug monitor around a single pipeline run, with flock-based
// locking to prevent two processes from opening the same camera. The IPC
// server and the CLI talk to the daemon; the pipeline itself lives in the
// pipeline package.
package daemon
