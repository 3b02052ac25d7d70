// Package preflight provides readiness checks for the camera, the output
// paths, and the optional features framewatch depends on.
//
// The CLI "framewatch check" command prints every result. "framewatch run"
// calls RunAll before arming the pipeline and refuses to start when a
// required check fails. Each check is gated by its config toggle; disabled
// features are skipped.
package preflight
